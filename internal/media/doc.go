// Package media turns a staged source file into the decoded frames and
// waveform the detection analyzers consume. Decoding is delegated to the
// ffmpeg and ffprobe binaries.
package media
