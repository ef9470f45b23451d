// Package media wraps ffmpeg and ffprobe as the frame decode and audio
// extraction primitives for one media asset.
package media
