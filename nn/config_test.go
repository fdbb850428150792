package nn

import (
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	conf := DefaultConf(10, 5, 32, 16)
	if !conf.IsValid() {
		t.Errorf("Expected Default Config to be correct. Got %v", conf.validate())
	}
	if len(conf.Widths) != 4 || conf.Widths[0] != 10 || conf.Widths[3] != 5 {
		t.Errorf("Unexpected widths %v", conf.Widths)
	}
}

func TestConfigErrors(t *testing.T) {
	conf := DefaultConf(10, 5)
	conf.Widths = []int{10}
	conf.Workers = -1
	conf.Normalize = true
	conf.Rho = 1
	err := conf.validate()
	if err == nil {
		t.Fatal("Expected an error")
	}
	if errs, ok := err.(manyErr); !ok || len(errs) != 3 {
		t.Errorf("Expected 3 errors. Got %v", err)
	}
	if !strings.Contains(err.Error(), "worker") {
		t.Errorf("Expected the worker count to be reported. Got %v", err)
	}
}

func TestActivationString(t *testing.T) {
	for a, s := range map[Activation]string{ReLU: "ReLU", Tanh: "Tanh", Identity: "Identity", 9: "Unknown Activation"} {
		if a.String() != s {
			t.Errorf("Expected %v. Got %v", s, a.String())
		}
	}
}
