package buffer

// GetMeanRMS computes per-channel mean and variance over the whole buffer
// in one pass and marks them ready. Channels with zero variance get weight 0.
func GetMeanRMS[F Float](b *Buffer[F]) {
	if len(b.Means) != b.NChans {
		b.resetStats()
	}
	sum := make([]float64, b.NChans)
	sumsq := make([]float64, b.NChans)
	for i := 0; i < b.NSamples; i++ {
		row := b.Row(i)
		for j, v := range row {
			x := float64(v)
			sum[j] += x
			sumsq[j] += x * x
		}
	}

	n := float64(b.NSamples)
	for j := 0; j < b.NChans; j++ {
		if n == 0 {
			b.Means[j], b.Vars[j] = 0, 0
		} else {
			b.Means[j] = sum[j] / n
			b.Vars[j] = max(sumsq[j]/n-b.Means[j]*b.Means[j], 0)
		}
		if b.Vars[j] == 0 {
			b.Weights[j] = 0
		}
	}
	b.MeanVarReady = true
}
