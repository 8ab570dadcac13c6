// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Inspect runs ffprobe through a caller-supplied RunFunc so tests can replay
// canned output. Result helpers expose the stream presence, duration and
// frame count the extractor uses to plan sampling.
package ffprobe
