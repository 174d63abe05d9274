// Package nodes provides the concrete audio nodes used by engine sessions:
// a tone generator, a gain effect, a queue-fed input node for captured audio
// and a file player that decodes WAV, MP3 and Ogg Vorbis.
//
// All nodes render interleaved float32 in their configured format. The file
// player resamples decoded audio to that format once, at load time, so the
// render path never allocates or decodes.
package nodes
