package info_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestInfoResponder(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Info Responder Suite")
}
