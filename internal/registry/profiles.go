package registry

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kozaktomas/pose-guard/internal/constants"
	"github.com/kozaktomas/pose-guard/internal/facematch"
	"github.com/kozaktomas/pose-guard/internal/fingerprint"
)

const (
	profilePrefix = "target_"
	profileSuffix = "_face"
	profileExt    = ".jpg"
)

// ErrProfileNotFound is returned when no profile file exists for a name.
var ErrProfileNotFound = errors.New("profile not found")

var profileExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
}

// Profile is a persisted enrollment image.
type Profile struct {
	Name string
	Path string
}

// ParseProfileName extracts NAME from a "target_<NAME>_face.<ext>" filename.
// NAME is everything between the prefix and the last "_face" of the stem.
func ParseProfileName(filename string) (string, bool) {
	base := filepath.Base(filename)
	ext := filepath.Ext(base)
	if !profileExts[strings.ToLower(ext)] {
		return "", false
	}
	stem := strings.TrimSuffix(base, ext)
	if !strings.HasPrefix(stem, profilePrefix) {
		return "", false
	}
	end := strings.LastIndex(stem, profileSuffix)
	if end <= len(profilePrefix) {
		return "", false
	}
	return stem[len(profilePrefix):end], true
}

// ProfileFileName returns the filename a new profile for name is saved under.
func ProfileFileName(name string) string {
	return profilePrefix + facematch.SafeName(name) + profileSuffix + profileExt
}

// ScanProfiles lists profile files in dir (non-recursive), sorted by filename.
// A missing directory yields no profiles.
func ScanProfiles(dir string) ([]Profile, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading profiles directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var profiles []Profile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name, ok := ParseProfileName(e.Name())
		if !ok {
			continue
		}
		profiles = append(profiles, Profile{Name: name, Path: filepath.Join(dir, e.Name())})
	}
	return profiles, nil
}

// SaveProfile writes chip as the profile image for name and returns its path.
func SaveProfile(dir, name string, chip image.Image) (string, error) {
	if facematch.SafeName(name) == "" {
		return "", fmt.Errorf("invalid profile name %q", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating profiles directory: %w", err)
	}

	data, err := fingerprint.EncodeJPEG(chip, constants.SnapshotJPEGQuality)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, ProfileFileName(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing profile: %w", err)
	}
	return path, nil
}

// RemoveProfile deletes every profile file whose name matches name.
func RemoveProfile(dir, name string) ([]string, error) {
	profiles, err := ScanProfiles(dir)
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, p := range profiles {
		if p.Name != name && !facematch.SameName(p.Name, name) {
			continue
		}
		if err := os.Remove(p.Path); err != nil {
			return removed, fmt.Errorf("removing %s: %w", p.Path, err)
		}
		removed = append(removed, p.Path)
	}
	if len(removed) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	return removed, nil
}
