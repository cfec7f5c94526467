// Command deduper deduplicates a source directory into a content-addressed
// chunk store and catalog, or reconstructs a tree from one.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logrus.WithError(err).Error("deduper failed")
		os.Exit(1)
	}
}
