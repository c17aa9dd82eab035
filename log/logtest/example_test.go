/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package logtest

import (
	"fmt"

	"github.com/acronis/go-admitgate/log"
)

func Example() {
	sweep := func(removed, size int, logger log.FieldLogger) {
		logger.Info("stale cache entries swept", log.Int("removed", removed), log.Int("size", size))
	}

	logRecorder := NewRecorder()
	sweep(3, 42, logRecorder)

	if logEntry, found := logRecorder.FindEntry("stale cache entries swept"); found {
		fmt.Printf("[%s] %s\n", logEntry.Level, logEntry.Text)
		if logField, ok := logEntry.FindField("removed"); ok {
			fmt.Printf("removed: %d\n", logField.Int)
		}
	}

	// Output:
	// [info] stale cache entries swept
	// removed: 3
}
