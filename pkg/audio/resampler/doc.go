// Package resampler converts mono 16-bit PCM between sample rates with a
// pure Go polyphase resampler.
//
// Capture devices usually run at 44.1 or 48 kHz while transcription
// backends expect 16 kHz:
//
//	c, err := resampler.New(pcm.L16Mono48K, pcm.L16Mono16K)
//	out, err := c.Convert(samples)
package resampler
