package api

import "fmt"

// ArtifactType identifies a downloadable job artifact.
type ArtifactType string

const (
	ArtifactScript     ArtifactType = "script"
	ArtifactTranscript ArtifactType = "transcript"
	ArtifactFrames     ArtifactType = "frames"
	ArtifactAudio      ArtifactType = "audio"
	ArtifactVideo      ArtifactType = "video"
)

// Binary reports whether the artifact is fetched as an opaque byte stream.
// Text artifacts decode directly and carry no local handle lifecycle.
func (t ArtifactType) Binary() bool {
	return t == ArtifactAudio || t == ArtifactVideo
}

// Extension returns the expected file extension for binary artifacts.
func (t ArtifactType) Extension() string {
	switch t {
	case ArtifactAudio:
		return ".wav"
	case ArtifactVideo:
		return ".mp4"
	default:
		return ".txt"
	}
}

// ParseArtifactType validates a user-supplied artifact type string.
func ParseArtifactType(raw string) (ArtifactType, error) {
	switch ArtifactType(raw) {
	case ArtifactScript, ArtifactTranscript, ArtifactFrames, ArtifactAudio, ArtifactVideo:
		return ArtifactType(raw), nil
	default:
		return "", fmt.Errorf("unknown artifact type %q (expected script, transcript, frames, audio, or video)", raw)
	}
}

// StageStatus returns the stage status field that gates availability of the
// given artifact on the supplied job snapshot.
func StageStatus(job Job, t ArtifactType) JobStatus {
	switch t {
	case ArtifactAudio:
		return job.AudioStatus
	case ArtifactVideo, ArtifactFrames:
		return job.VideoStatus
	default:
		return job.ScriptStatus
	}
}
