package capture

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		db   float64
		want float32
	}{
		{-160, 0},
		{-61, 0},
		{-60, 0},
		{-45, 0.25},
		{-30, 0.5},
		{0, 1},
		{6, 1},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		if got := Normalize(tt.db); math.Abs(float64(got-tt.want)) > 1e-6 {
			t.Errorf("Normalize(%v) = %v, want %v", tt.db, got, tt.want)
		}
	}

	prev := Normalize(-200)
	for db := -200.0; db <= 20; db += 0.5 {
		got := Normalize(db)
		if got < prev || got < 0 || got > 1 {
			t.Fatalf("Normalize(%v) = %v after %v", db, got, prev)
		}
		prev = got
	}
}

func TestDBFS(t *testing.T) {
	constant := func(v int16, n int) []int16 {
		s := make([]int16, n)
		for i := range s {
			s[i] = v
		}
		return s
	}
	tests := []struct {
		name    string
		samples []int16
		want    float64
	}{
		{"empty", nil, FloorDB},
		{"silence", make([]int16, 160), FloorDB},
		{"full scale", constant(-32768, 160), 0},
		{"half scale", constant(16384, 160), -6.0206},
		{"tiny", constant(1, 160), -90.309},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DBFS(tt.samples); math.Abs(got-tt.want) > 0.01 {
				t.Errorf("DBFS = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCachedPermission(t *testing.T) {
	calls := 0
	p := NewCachedPermission(PermissionFunc(func(ctx context.Context) (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		calls++
		return true, nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Request(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled request err = %v", err)
	}
	for range 3 {
		granted, err := p.Request(context.Background())
		if err != nil || !granted {
			t.Fatalf("Request = %v, %v", granted, err)
		}
	}
	if calls != 1 {
		t.Errorf("underlying calls = %d, want 1", calls)
	}
}
