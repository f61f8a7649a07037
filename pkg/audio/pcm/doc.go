// Package pcm describes mono 16-bit PCM audio and moves it around in chunks.
//
//	format := pcm.L16Mono16K
//	bytes := format.BytesInDuration(50 * time.Millisecond) // 1600
//	chunk := format.SamplesChunk(samples)
package pcm
