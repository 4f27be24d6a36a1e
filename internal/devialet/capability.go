package devialet

import (
	"regexp"

	"golang.org/x/mod/semver"
)

// Feature names an optional device behaviour.
type Feature string

const (
	FeatureNightMode Feature = "nightMode"
	FeatureReboot    Feature = "reboot"
	FeatureEqualizer Feature = "equalizer"
)

// MinGatedFirmware is the first DOS release supporting the gated features.
const MinGatedFirmware = "2.16.0"

// advertisedAs lists the availableFeatures names that enable each feature.
var advertisedAs = map[Feature][]string{
	FeatureNightMode: {"nightMode"},
	FeatureReboot:    {"reboot", "restart"},
}

// firmwareGated features also require MinGatedFirmware.
var firmwareGated = map[Feature]bool{
	FeatureNightMode: true,
	FeatureReboot:    true,
}

var versionPattern = regexp.MustCompile(`\d+\.\d+(?:\.\d+)?(?:-[0-9A-Za-z.-]+)?`)

// Supports reports whether the device described by info can perform
// feature. Gated features need to be advertised in AvailableFeatures and
// need firmware >= MinGatedFirmware. An unparseable firmware version
// disables gated features.
func Supports(feature Feature, info DeviceInfo) bool {
	if names, ok := advertisedAs[feature]; ok {
		advertised := false
		for _, name := range names {
			if info.HasFeature(name) {
				advertised = true
				break
			}
		}
		if !advertised {
			return false
		}
	}

	if firmwareGated[feature] {
		ok, err := FirmwareAtLeast(info.FirmwareVersion, MinGatedFirmware)
		return err == nil && ok
	}

	return true
}

// FirmwareAtLeast compares firmware against minimum. Both may carry
// surrounding text ("DOS 2.16.1") and a pre-release suffix ("2.16.0-rc2",
// which sorts before "2.16.0"). A missing patch number counts as 0.
func FirmwareAtLeast(firmware, minimum string) (bool, error) {
	have, err := ParseFirmwareVersion(firmware)
	if err != nil {
		return false, err
	}
	want, err := ParseFirmwareVersion(minimum)
	if err != nil {
		return false, err
	}
	return semver.Compare(have, want) >= 0, nil
}

// ParseFirmwareVersion extracts a canonical semantic version
// ("v2.16.1") from a firmware string.
func ParseFirmwareVersion(s string) (string, error) {
	match := versionPattern.FindString(s)
	if match == "" {
		return "", invalid("firmware version", s, "no version number found")
	}
	v := semver.Canonical("v" + match)
	if v == "" {
		return "", invalid("firmware version", s, "not a semantic version")
	}
	return v, nil
}
