package fingerprint

import "testing"

type testConfig struct {
	ModelType string             `json:"model_type"`
	Params    map[string]float64 `json:"params,omitempty"`
}

func TestComputeDeterministic(t *testing.T) {
	cfg := testConfig{ModelType: "frequency", Params: map[string]float64{"alpha": 0.5, "beta": 2}}
	a, err := Compute(cfg, []string{"book a flight", "cancel my trip"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := Compute(cfg, []string{"book a flight", "cancel my trip"})
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("same inputs produced different digests: %s vs %s", a, b)
	}
}

func TestComputeQueryOrderIndependent(t *testing.T) {
	cfg := testConfig{ModelType: "frequency"}
	a, _ := Compute(cfg, []string{"one", "two", "three"})
	b, _ := Compute(cfg, []string{"three", "one", "two"})
	if a != b {
		t.Error("digest must not depend on query order")
	}
}

func TestComputeSensitivity(t *testing.T) {
	base, _ := Compute(testConfig{ModelType: "frequency"}, []string{"one"})
	differentConfig, _ := Compute(testConfig{ModelType: "centroid"}, []string{"one"})
	if base == differentConfig {
		t.Error("config change must change the digest")
	}
	differentData, _ := Compute(testConfig{ModelType: "frequency"}, []string{"two"})
	if base == differentData {
		t.Error("data change must change the digest")
	}
	extraQuery, _ := Compute(testConfig{ModelType: "frequency"}, []string{"one", "one"})
	if base == extraQuery {
		t.Error("data content, not just set, must contribute")
	}
}

func TestComputeDoesNotMutateInput(t *testing.T) {
	queries := []string{"zeta", "alpha"}
	if _, err := Compute(testConfig{}, queries); err != nil {
		t.Fatal(err)
	}
	if queries[0] != "zeta" || queries[1] != "alpha" {
		t.Error("Compute must sort a copy, not the caller's slice")
	}
}

func TestHashStringsBoundaries(t *testing.T) {
	// length prefixing keeps adjacent values from running together
	a := HashStrings([]string{"ab", "c"})
	b := HashStrings([]string{"a", "bc"})
	if a == b {
		t.Error("boundary-shifted sequences must hash differently")
	}
}
