package config

import (
	"fmt"
	"os"
)

// FeatureAutoBuildSwitcher disables the whole activate-or-provision flow when
// its kill switch is set.
const FeatureAutoBuildSwitcher = "AUTO_BUILD_SWITCHER"

// IsFeatureDisabled reports whether the GCUBED_CODE_<feature>_DISABLED
// environment variable exists. Presence with any value, including empty,
// disables the feature; only absence enables it.
func IsFeatureDisabled(feature string) bool {
	_, present := os.LookupEnv(featureDisableVar(feature))
	return present
}

func featureDisableVar(feature string) string {
	return fmt.Sprintf("GCUBED_CODE_%s_DISABLED", feature)
}
