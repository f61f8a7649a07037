// Package audio groups the audio sub-packages used by voxmemo:
//
//   - pcm: mono 16-bit PCM formats and chunk I/O
//   - wav: RIFF/WAVE header parsing and streaming writer
//   - resampler: sample-rate conversion to the 16 kHz backend format
//   - portaudio: microphone capture (cgo)
package audio
