package slq

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestSLQ(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "SLQ Suite")
}
