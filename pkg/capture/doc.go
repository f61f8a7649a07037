// Package capture records microphone audio into a 16 kHz mono WAV file
// while publishing a rolling window of normalized input levels.
//
// A Recorder moves through the states
//
//	Uninitialized → PermissionPending → PermissionDenied | Ready → Recording ↔ Paused → Stopped
//
// and a stopped Recorder may start a new session. One sampling routine
// drives both the level window and the elapsed clock; it runs only while
// recording.
package capture
