package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/customerdir/internal/application/listsync"
	"github.com/erp/customerdir/internal/domain/customer"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name  string
		state listsync.State
		want  string
	}{
		{"idle", listsync.Idle{}, "Customer list not loaded yet\n"},
		{"loading", listsync.Loading{}, "Loading customers...\n"},
		{"empty", listsync.Empty{}, "No customers available\n"},
		{"error", listsync.Error{Message: "Network Error"}, "Ooops there was an error: Network Error\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, render(&buf, tt.state))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestRender_Loaded(t *testing.T) {
	var buf bytes.Buffer
	err := render(&buf, listsync.Loaded{Records: []customer.Record{
		{ID: 1, Name: "Ann Lee", Email: "ann@example.com", Age: 31, Gender: customer.GenderFemale},
		{ID: 22, Name: "Bob Stone", Email: "bob@example.com", Age: 45, Gender: customer.GenderMale},
	}})
	require.NoError(t, err)

	out := buf.String()
	for _, want := range []string{"Ann Lee", "ann@example.com", "31", "FEMALE", "22", "Bob Stone", "MALE"} {
		assert.Contains(t, out, want)
	}
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("Ann Lee")), bytes.Index(buf.Bytes(), []byte("Bob Stone")),
		"rows keep the order of the records")
}
