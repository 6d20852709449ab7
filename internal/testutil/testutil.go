// Package testutil provides shared test helpers: design fixtures for region
// tests and request helpers for the debug HTTP surfaces.
package testutil

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// NewLoopbackRequest creates a test HTTP request that appears to come from
// localhost, which debug handlers require.
func NewLoopbackRequest(method, path string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "127.0.0.1:40000"
	return req
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}

// UniformDesign returns an nx by ny density map filled with v.
func UniformDesign(nx, ny int, v float64) *mat.Dense {
	m := mat.NewDense(nx, ny, nil)
	for i := range nx {
		for j := range ny {
			m.Set(i, j, v)
		}
	}
	return m
}

// RampDesign returns an nx by ny density map rising linearly from 0 at the
// first row to 1 at the last.
func RampDesign(nx, ny int) *mat.Dense {
	m := mat.NewDense(nx, ny, nil)
	if nx == 1 {
		return m
	}
	for i := range nx {
		v := float64(i) / float64(nx-1)
		for j := range ny {
			m.Set(i, j, v)
		}
	}
	return m
}

// AssertDenseInDelta checks that got and want have equal dimensions and agree
// element-wise within delta.
func AssertDenseInDelta(t *testing.T, got, want mat.Matrix, delta float64) {
	t.Helper()
	gr, gc := got.Dims()
	wr, wc := want.Dims()
	if gr != wr || gc != wc {
		t.Fatalf("dims = %dx%d, want %dx%d", gr, gc, wr, wc)
	}
	for i := range gr {
		for j := range gc {
			if g, w := got.At(i, j), want.At(i, j); math.Abs(g-w) > delta {
				t.Errorf("[%d][%d] = %v, want %v (delta %v)", i, j, g, w, delta)
			}
		}
	}
}
