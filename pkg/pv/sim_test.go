package pv

import (
	"errors"
	"testing"
	"time"
)

func TestSimGetPut(t *testing.T) {
	s := NewSim(map[string]any{"a": 1})

	v, err := s.Get("a")
	if err != nil {
		t.Fatalf("Get(a) error = %v", err)
	}
	if v != 1 {
		t.Errorf("Get(a) = %v, want 1", v)
	}

	if _, err := s.Get("missing"); !errors.Is(err, ErrUnknown) {
		t.Errorf("Get(missing) error = %v, want ErrUnknown", err)
	}

	if err := s.Put("b", "hello"); err != nil {
		t.Fatalf("Put(b) error = %v", err)
	}
	v, err = s.Get("b")
	if err != nil {
		t.Fatalf("Get(b) error = %v", err)
	}
	if v != "hello" {
		t.Errorf("Get(b) = %v, want hello", v)
	}
}

func TestSimWait(t *testing.T) {
	t.Run("already equal", func(t *testing.T) {
		s := NewSim(map[string]any{"x": 5})
		if err := s.Wait("x", 5, time.Millisecond); err != nil {
			t.Errorf("Wait error = %v", err)
		}
	})

	t.Run("float tolerance", func(t *testing.T) {
		s := NewSim(map[string]any{"x": 1.0000001})
		if err := s.Wait("x", 1.0, time.Millisecond); err != nil {
			t.Errorf("Wait error = %v", err)
		}
	})

	t.Run("int equals float", func(t *testing.T) {
		s := NewSim(map[string]any{"x": 5.0})
		if err := s.Wait("x", 5, time.Millisecond); err != nil {
			t.Errorf("Wait error = %v", err)
		}
	})

	t.Run("satisfied by later write", func(t *testing.T) {
		s := NewSim(map[string]any{"x": 0})

		done := make(chan error, 1)
		go func() { done <- s.Wait("x", 3, 5*time.Second) }()

		time.Sleep(10 * time.Millisecond)
		s.Set("x", 1)
		s.Set("x", 3)

		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Wait error = %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("Wait did not return")
		}
	})

	t.Run("timeout", func(t *testing.T) {
		s := NewSim(map[string]any{"x": 0})
		if err := s.Wait("x", 1, 10*time.Millisecond); !errors.Is(err, ErrWaitTimeout) {
			t.Errorf("Wait error = %v, want ErrWaitTimeout", err)
		}
	})
}

func TestSimOnPut(t *testing.T) {
	s := NewSim(nil)

	var got []any
	s.OnPut("x", func(value any) {
		got = append(got, value)
	})

	// Set must not fire hooks. Device emulation relies on this to
	// publish state without recursing into itself.
	s.Set("x", 1)
	if len(got) != 0 {
		t.Fatalf("Set fired OnPut hook: %v", got)
	}

	if err := s.Put("x", 2); err != nil {
		t.Fatalf("Put error = %v", err)
	}
	if err := s.Put("x", 3); err != nil {
		t.Fatalf("Put error = %v", err)
	}

	if len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Errorf("hook calls = %v, want [2 3]", got)
	}
}

func TestSimHookMayWriteBack(t *testing.T) {
	s := NewSim(map[string]any{"busy": 0})
	s.OnPut("cmd", func(value any) {
		s.Set("busy", 1)
	})

	if err := s.Put("cmd", "go"); err != nil {
		t.Fatalf("Put error = %v", err)
	}
	v, err := s.Get("busy")
	if err != nil {
		t.Fatalf("Get error = %v", err)
	}
	if v != 1 {
		t.Errorf("busy = %v, want 1", v)
	}
}

func TestSimClose(t *testing.T) {
	s := NewSim(map[string]any{"x": 0})

	done := make(chan error, 1)
	go func() { done <- s.Wait("x", 1, 5*time.Second) }()
	time.Sleep(10 * time.Millisecond)

	if err := s.Close(); err != nil {
		t.Fatalf("Close error = %v", err)
	}

	select {
	case err := <-done:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("Wait after close error = %v, want ErrClosed", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return after Close")
	}

	if _, err := s.Get("x"); !errors.Is(err, ErrClosed) {
		t.Errorf("Get after close error = %v, want ErrClosed", err)
	}
	if err := s.Put("x", 1); !errors.Is(err, ErrClosed) {
		t.Errorf("Put after close error = %v, want ErrClosed", err)
	}
}

func TestClientTypedAccessors(t *testing.T) {
	s := NewSim(map[string]any{
		"f":    1.5,
		"i":    7,
		"if":   3.0,
		"frac": 3.5,
		"s":    "text",
	})
	c := NewClient(s)

	t.Run("Float", func(t *testing.T) {
		tests := []struct {
			name    string
			pv      string
			want    float64
			wantErr bool
		}{
			{name: "float value", pv: "f", want: 1.5},
			{name: "int value", pv: "i", want: 7},
			{name: "string value", pv: "s", wantErr: true},
			{name: "unknown", pv: "nope", wantErr: true},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := c.Float(tt.pv)
				if (err != nil) != tt.wantErr {
					t.Fatalf("Float(%s) error = %v, wantErr %v", tt.pv, err, tt.wantErr)
				}
				if !tt.wantErr && got != tt.want {
					t.Errorf("Float(%s) = %v, want %v", tt.pv, got, tt.want)
				}
			})
		}
	})

	t.Run("Int", func(t *testing.T) {
		tests := []struct {
			name    string
			pv      string
			want    int
			wantErr bool
		}{
			{name: "int value", pv: "i", want: 7},
			{name: "integral float", pv: "if", want: 3},
			{name: "fractional float", pv: "frac", wantErr: true},
			{name: "string value", pv: "s", wantErr: true},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := c.Int(tt.pv)
				if (err != nil) != tt.wantErr {
					t.Fatalf("Int(%s) error = %v, wantErr %v", tt.pv, err, tt.wantErr)
				}
				if !tt.wantErr && got != tt.want {
					t.Errorf("Int(%s) = %v, want %v", tt.pv, got, tt.want)
				}
			})
		}
	})

	t.Run("String", func(t *testing.T) {
		got, err := c.String("s")
		if err != nil {
			t.Fatalf("String(s) error = %v", err)
		}
		if got != "text" {
			t.Errorf("String(s) = %q, want %q", got, "text")
		}
		if _, err := c.String("i"); err == nil {
			t.Error("String(i) expected a type error")
		}
	})
}
