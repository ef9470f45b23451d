// Package language normalizes language identifiers between the formats used
// by speech-to-text output, ffprobe metadata, and the whisper command line.
package language
