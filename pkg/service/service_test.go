package service

import (
	"context"
	"errors"
	"testing"
)

type fake struct {
	name  string
	err   error
	trace *[]string
}

func (f fake) Run() { *f.trace = append(*f.trace, "run "+f.name) }
func (f fake) Shutdown(context.Context) error {
	*f.trace = append(*f.trace, "stop "+f.name)
	return f.err
}

func TestGroup(t *testing.T) {
	var trace []string
	boom := errors.New("boom")

	var g Group
	g.Add(fake{name: "a", trace: &trace}, "not runnable", fake{name: "b", err: boom, trace: &trace},
		fake{name: "c", err: context.Canceled, trace: &trace})
	g.Start()
	err := g.Shutdown(context.Background())

	want := []string{"run a", "run b", "run c", "stop c", "stop b", "stop a"}
	if len(trace) != len(want) {
		t.Fatalf("trace %v", trace)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Errorf("%v: %v != %v", i, trace[i], want[i])
		}
	}
	if !errors.Is(err, boom) {
		t.Errorf("error %v", err)
	}
}
