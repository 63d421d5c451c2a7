package buffer_test

import (
	"fmt"

	"github.com/cwbudde/algo-tfprep/tf/buffer"
)

func ExampleBuffer_Run() {
	src := buffer.New[float32](2, 2)
	copy(src.Samples, []float32{1, 2, 3, 4})

	var stage buffer.Buffer[float32]
	stage.Prepare(src)
	r := stage.Run(src)

	fmt.Println(r.Kind, r.Buf.Samples, stage.Counter)
	// Output: owned [1 2 3 4] 2
}

func ExampleGetMeanRMS() {
	b := buffer.New[float64](4, 1)
	copy(b.Samples, []float64{1, 2, 3, 4})
	buffer.GetMeanRMS(b)
	fmt.Println(b.Means[0], b.Vars[0])
	// Output: 2.5 1.25
}
