package imagecache

import (
	"os"
)

// Mode says whether the local filesystem can hold cached images.
type Mode string

const (
	ModeAuto       Mode = "auto"
	ModePersistent Mode = "persistent"
	ModeEphemeral  Mode = "ephemeral"
)

// serverlessMarkers are env vars set by runtimes with a throwaway filesystem.
var serverlessMarkers = []string{"VERCEL", "AWS_LAMBDA_FUNCTION_NAME", "K_SERVICE"}

// DetectMode resolves ModeAuto against the environment and dir.
func DetectMode(mode Mode, dir string) Mode {
	switch mode {
	case ModePersistent, ModeEphemeral:
		return mode
	}
	for _, name := range serverlessMarkers {
		if os.Getenv(name) != "" {
			return ModeEphemeral
		}
	}
	if !writable(dir) {
		return ModeEphemeral
	}
	return ModePersistent
}

func writable(dir string) bool {
	if dir == "" {
		return false
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return false
	}
	f, err := os.CreateTemp(dir, ".writecheck-*")
	if err != nil {
		return false
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return true
}
