/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"fmt"
	"time"
)

// GetPositiveDuration retrieves the duration by the key and checks that it's > 0.
func GetPositiveDuration(dp DataProvider, key string) (time.Duration, error) {
	dur, err := dp.GetDuration(key)
	if err != nil {
		return 0, err
	}
	if dur <= 0 {
		return 0, dp.WrapKeyErr(key, fmt.Errorf("should be > 0, got %s", dur))
	}
	return dur, nil
}

// GetNonNegativeDuration retrieves the duration by the key and checks that it's >= 0.
// Zero usually means "disabled" or "no timeout".
func GetNonNegativeDuration(dp DataProvider, key string) (time.Duration, error) {
	dur, err := dp.GetDuration(key)
	if err != nil {
		return 0, err
	}
	if dur < 0 {
		return 0, dp.WrapKeyErr(key, fmt.Errorf("should be >= 0, got %s", dur))
	}
	return dur, nil
}

// GetPositiveInt retrieves the integer by the key and checks that it's > 0.
func GetPositiveInt(dp DataProvider, key string) (int, error) {
	val, err := dp.GetInt(key)
	if err != nil {
		return 0, err
	}
	if val <= 0 {
		return 0, dp.WrapKeyErr(key, fmt.Errorf("should be > 0, got %d", val))
	}
	return val, nil
}

// GetNonNegativeInt retrieves the integer by the key and checks that it's >= 0.
func GetNonNegativeInt(dp DataProvider, key string) (int, error) {
	val, err := dp.GetInt(key)
	if err != nil {
		return 0, err
	}
	if val < 0 {
		return 0, dp.WrapKeyErr(key, fmt.Errorf("should be >= 0, got %d", val))
	}
	return val, nil
}

// GetIntInRange retrieves the integer by the key and checks that it's within [minVal, maxVal].
func GetIntInRange(dp DataProvider, key string, minVal, maxVal int) (int, error) {
	val, err := dp.GetInt(key)
	if err != nil {
		return 0, err
	}
	if val < minVal || val > maxVal {
		return 0, dp.WrapKeyErr(key, fmt.Errorf("should be in [%d, %d], got %d", minVal, maxVal, val))
	}
	return val, nil
}
