package embedding

import (
	"context"
	"math"
	"testing"
)

func TestMockEmbedder_DeterministicUnitVectors(t *testing.T) {
	e := NewMockEmbedder(16)
	ctx := context.Background()
	a, err := e.Embed(ctx, "I like long walks")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := e.Embed(ctx, "I like long walks")
	c, _ := e.Embed(ctx, "jazz and rainy days")
	if len(a) != 16 {
		t.Fatalf("len=%d", len(a))
	}
	var norm, same, diff float64
	for i := range a {
		norm += float64(a[i]) * float64(a[i])
		same += float64(a[i]) * float64(b[i])
		diff += float64(a[i]) * float64(c[i])
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Errorf("expected unit norm, got %f", norm)
	}
	if math.Abs(same-1) > 1e-5 {
		t.Errorf("identical text should give identical vectors, dot=%f", same)
	}
	if diff > 0.99 {
		t.Errorf("different texts should not be identical, dot=%f", diff)
	}
}

func TestMockEmbedder_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewMockEmbedder(4).Embed(ctx, "x"); err == nil {
		t.Error("expected context error")
	}
}

func TestMockEmbedder_DefaultDimensions(t *testing.T) {
	if NewMockEmbedder(0).Dimensions() != 384 {
		t.Error("default dimensions should be 384")
	}
}
