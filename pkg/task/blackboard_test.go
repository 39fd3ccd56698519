package task

import (
	"encoding/json"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fieldBoard struct {
	Count   int
	Title   string
	Results []string
	Meta    map[string]any
}

func TestGetField(t *testing.T) {
	b := &fieldBoard{Count: 3, Title: "t"}

	t.Run("struct pointer", func(t *testing.T) {
		v, err := getField(b, "Count")
		require.NoError(t, err)
		assert.Equal(t, 3, v)
	})

	t.Run("case insensitive", func(t *testing.T) {
		v, err := getField(b, "title")
		require.NoError(t, err)
		assert.Equal(t, "t", v)
	})

	t.Run("map blackboard", func(t *testing.T) {
		v, err := getField(map[string]any{"k": 7}, "k")
		require.NoError(t, err)
		assert.Equal(t, 7, v)
	})

	t.Run("missing field", func(t *testing.T) {
		_, err := getField(b, "Absent")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not present")
	})

	t.Run("missing map key", func(t *testing.T) {
		_, err := getField(map[string]any{}, "k")
		require.Error(t, err)
	})

	t.Run("nil blackboard", func(t *testing.T) {
		_, err := getField((*fieldBoard)(nil), "Count")
		require.Error(t, err)
	})

	t.Run("scalar blackboard", func(t *testing.T) {
		_, err := getField(42, "Count")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "has no fields")
	})
}

func TestSetField(t *testing.T) {
	t.Run("struct pointer", func(t *testing.T) {
		b := &fieldBoard{}
		require.NoError(t, setField(b, "Title", "hello"))
		assert.Equal(t, "hello", b.Title)
	})

	t.Run("case insensitive", func(t *testing.T) {
		b := &fieldBoard{}
		require.NoError(t, setField(b, "count", 5))
		assert.Equal(t, 5, b.Count)
	})

	t.Run("map blackboard", func(t *testing.T) {
		m := map[string]any{}
		require.NoError(t, setField(m, "k", "v"))
		assert.Equal(t, "v", m["k"])
	})

	t.Run("numeric widening", func(t *testing.T) {
		b := &fieldBoard{}
		require.NoError(t, setField(b, "Count", float64(4)))
		assert.Equal(t, 4, b.Count)
	})

	t.Run("decoded json into struct field", func(t *testing.T) {
		type inner struct{ N int }
		type board struct{ In inner }
		b := &board{}
		require.NoError(t, setField(b, "In", map[string]any{"n": int64(9)}))
		assert.Equal(t, 9, b.In.N)
	})

	t.Run("value blackboard is not settable", func(t *testing.T) {
		err := setField(fieldBoard{}, "Count", 1)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not settable")
	})

	t.Run("incompatible value", func(t *testing.T) {
		b := &fieldBoard{}
		err := setField(b, "Count", "not a number")
		require.Error(t, err)
	})

	t.Run("nil clears to zero", func(t *testing.T) {
		b := &fieldBoard{Title: "x"}
		require.NoError(t, setField(b, "Title", nil))
		assert.Equal(t, "", b.Title)
	})
}

func TestTruthy(t *testing.T) {
	var nilPtr *fieldBoard
	cases := []struct {
		name string
		v    any
		want bool
	}{
		{"nil", nil, false},
		{"empty string", "", false},
		{"string", "x", true},
		{"zero int", 0, false},
		{"int", 1, true},
		{"false", false, false},
		{"true", true, true},
		{"empty slice", []string{}, false},
		{"slice", []string{"a"}, true},
		{"empty map", map[string]int{}, false},
		{"map", map[string]int{"a": 1}, true},
		{"nil pointer", nilPtr, false},
		{"pointer", &fieldBoard{}, true},
		{"zero time", time.Time{}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, truthy(tc.v))
		})
	}
}

func TestStringify(t *testing.T) {
	at := time.Date(2024, 5, 17, 9, 30, 0, 0, time.UTC)

	assert.Equal(t, "null", stringify(nil))
	assert.Equal(t, "plain", stringify("plain"))
	assert.Equal(t, "2024-05-17 09:30:00", stringify(at))
	assert.Equal(t, "1.5s", stringify(1500*time.Millisecond))
	assert.Equal(t, "90s", stringify(90*time.Second))
	assert.Equal(t, "boom", stringify(errors.New("boom")))
	assert.Equal(t, `{"a":1}`, stringify(map[string]int{"a": 1}))
	assert.Equal(t, `[1,2]`, stringify([]int{1, 2}))
}

func TestSanitizePayload(t *testing.T) {
	assert.Nil(t, sanitizePayload(nil))
	assert.Equal(t, "boom", sanitizePayload(errors.New("boom")))
	assert.Equal(t, map[string]int{"a": 1}, sanitizePayload(map[string]int{"a": 1}))

	// Unmarshalable values degrade to their string rendering instead of
	// breaking trace serialization.
	assert.IsType(t, "", sanitizePayload(make(chan int)))
}

func TestAsInt(t *testing.T) {
	cases := []struct {
		name string
		v    any
		want int
		ok   bool
	}{
		{"int", 7, 7, true},
		{"int64", int64(7), 7, true},
		{"uint8", uint8(7), 7, true},
		{"integral float", float64(7), 7, true},
		{"fractional float", 7.5, 0, false},
		{"json number", json.Number("42"), 42, true},
		{"fractional json number", json.Number("4.5"), 0, false},
		{"string", "7", 0, false},
		{"nil", nil, 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := asInt(tc.v)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestNormalizeNumbers(t *testing.T) {
	in := map[string]any{
		"i": json.Number("3"),
		"f": json.Number("2.5"),
		"nested": []any{
			json.Number("1"),
			map[string]any{"deep": json.Number("4")},
		},
		"s": "keep",
	}

	out := normalizeNumbers(in)

	assert.Equal(t, map[string]any{
		"i": int64(3),
		"f": 2.5,
		"nested": []any{
			int64(1),
			map[string]any{"deep": int64(4)},
		},
		"s": "keep",
	}, out)
}

func TestNormalizeNumbers_Overflow(t *testing.T) {
	// Too large for int64, still a valid float64.
	out := normalizeNumbers(json.Number("18446744073709551615"))
	assert.Equal(t, float64(18446744073709551615), out)
}

func TestWeightedOrder(t *testing.T) {
	seeded := func(seed uint64) *runState {
		return &runState{cfg: &runConfig{rng: rand.New(rand.NewPCG(seed, 0))}}
	}

	t.Run("uniform shuffle is a permutation", func(t *testing.T) {
		order := weightedOrder(seeded(1), 5, nil)
		assert.ElementsMatch(t, []int{0, 1, 2, 3, 4}, order)
	})

	t.Run("seeded shuffle is reproducible", func(t *testing.T) {
		assert.Equal(t, weightedOrder(seeded(9), 6, nil), weightedOrder(seeded(9), 6, nil))
	})

	t.Run("positive weight beats zero weights", func(t *testing.T) {
		for i := 0; i < 20; i++ {
			order := weightedOrder(seeded(uint64(i)), 3, []float64{0, 0, 5})
			assert.Equal(t, 2, order[0])
			assert.ElementsMatch(t, []int{0, 1, 2}, order)
		}
	})

	t.Run("all zero weights fall back to uniform", func(t *testing.T) {
		order := weightedOrder(seeded(3), 4, []float64{0, 0, 0, 0})
		assert.ElementsMatch(t, []int{0, 1, 2, 3}, order)
	})
}
