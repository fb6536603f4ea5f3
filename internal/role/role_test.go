package role

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/hbctl/hbctl/internal/apperrors"
)

func TestStartOrderCanonical(t *testing.T) {
	roles, err := StartOrder(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := Names(roles); !reflect.DeepEqual(got, []string{RegionServer, Master}) {
		t.Errorf("start order = %v", got)
	}
}

func TestStopOrderIsReverseOfStartOrder(t *testing.T) {
	filters := [][]string{
		nil,
		{Master},
		{RegionServer},
		{Master, RegionServer},
		{RegionServer, Master},
		{Master, Master},
	}
	for _, f := range filters {
		start, err := StartOrder(f)
		if err != nil {
			t.Fatalf("StartOrder(%v): %v", f, err)
		}
		stop, err := StopOrder(f)
		if err != nil {
			t.Fatalf("StopOrder(%v): %v", f, err)
		}
		s, p := Names(start), Names(stop)
		if len(s) != len(p) {
			t.Fatalf("filter %v: length mismatch %v vs %v", f, s, p)
		}
		for i := range s {
			if s[i] != p[len(p)-1-i] {
				t.Errorf("filter %v: stop order %v is not the reverse of %v", f, p, s)
			}
		}
	}
}

func TestStartOrderFilterKeepsCanonicalOrder(t *testing.T) {
	roles, err := StartOrder([]string{Master, RegionServer})
	if err != nil {
		t.Fatal(err)
	}
	if got := Names(roles); !reflect.DeepEqual(got, []string{RegionServer, Master}) {
		t.Errorf("filter must not reorder roles, got %v", got)
	}
}

func TestStartOrderUnknownRole(t *testing.T) {
	_, err := StartOrder([]string{"thriftserver"})
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRuntimeParams(t *testing.T) {
	m, _ := Lookup(Master)
	got := m.RuntimeParams(12500)
	if got["hbase.master.port"] != "12500" || got["hbase.master.info.port"] != "12501" {
		t.Errorf("unexpected master params: %v", got)
	}
	rs, _ := Lookup(RegionServer)
	if rs.EntryPoint() != "org.apache.hadoop.hbase.regionserver.HRegionServer" {
		t.Errorf("unexpected entry point %q", rs.EntryPoint())
	}
}

func TestSchemaValidateDefaultsAndConversion(t *testing.T) {
	s := append(Schema{}, CommonSchema...)
	vals, err := s.Validate("jobs.regionserver", map[string]any{
		"base_port": 12600,
		"xmx":       "4096",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vals.Int("base_port") != 12600 {
		t.Errorf("base_port = %d", vals.Int("base_port"))
	}
	if vals.Int("xmx") != 4096 {
		t.Errorf("string xmx should convert, got %d", vals.Int("xmx"))
	}
	if vals.Int("xmn") != 512 {
		t.Errorf("xmn default = %d", vals.Int("xmn"))
	}
}

func TestSchemaValidateCollectsAllProblems(t *testing.T) {
	m, _ := Lookup(Master)
	s := append(append(Schema{}, CommonSchema...), m.Schema()...)
	_, err := s.Validate("jobs.master", map[string]any{
		"xmx":   "lots",
		"xmxx":  1,
		"debug": true,
	})
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	msg := err.Error()
	for _, want := range []string{"base_port", "hdfs_root", "xmx: expected int", "xmxx: unknown parameter", "debug: unknown parameter"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q missing %q", msg, want)
		}
	}
}
