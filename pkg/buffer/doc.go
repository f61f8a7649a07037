// Package buffer provides a thread-safe sliding window over the most recent
// values written to it.
//
// A Window never blocks writers: once it is full, every new value evicts the
// oldest one. Readers can either take a Snapshot of the current contents or
// drain it with Next, which blocks until a value arrives or the window is
// closed for writing.
//
//	levels := buffer.RingN[float32](100)
//	levels.Add(0.4)
//	recent := levels.Snapshot()
package buffer
