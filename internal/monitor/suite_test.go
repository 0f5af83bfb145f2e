// End-to-end supervisor scenarios against the mock solver. To run only the
// Ginkgo specs use the Ginkgo binary (from repo root):
//
//	go run github.com/onsi/ginkgo/v2/ginkgo ./internal/monitor/...
package monitor

import (
	"testing"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

func TestMonitor(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Monitor Suite")
}
