// Package transcribe runs whisper-cli over a video's audio track and
// normalizes its JSON output into timed transcript segments. Transcripts
// serve two pipeline roles: segment boundaries become strategic frame
// candidates, and nearby narration is threaded into annotation prompts.
package transcribe
