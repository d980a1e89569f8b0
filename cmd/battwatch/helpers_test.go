package main

import (
	"reflect"
	"testing"
)

func TestParseIntList(t *testing.T) {
	tests := []struct {
		in      string
		want    []int
		wantErr bool
	}{
		{in: "", want: []int{}},
		{in: "  ", want: []int{}},
		{in: "30,20,10", want: []int{30, 20, 10}},
		{in: " 80 , 90%,100 ", want: []int{80, 90, 100}},
		{in: "0", want: []int{0}},
		{in: "10,,20", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "101", wantErr: true},
		{in: "-1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseIntList(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseIntList(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseIntList(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatIntList(t *testing.T) {
	if got := formatIntList(nil); got != "none" {
		t.Errorf("got %q", got)
	}
	if got := formatIntList([]int{40, 30}); got != "40%, 30%" {
		t.Errorf("got %q", got)
	}
}
