// Package buffer provides the time x channel sample container shared by
// every conditioning stage, together with its ownership protocol.
//
// A stage owns one Buffer, prepared once from its predecessor. Per chunk it
// either takes the predecessor's content into its own storage (Run, which
// yields an Owned result) or mutates the predecessor in place (Filter, which
// yields an Alias of the input). Exactly one stage writes a Buffer at a time.
//
// Storage can be released with Close and restored with Open. Attaching a
// Pool makes Close hand the slice back to a shared arena so that the next
// Open anywhere in the pipeline can reuse it.
package buffer
