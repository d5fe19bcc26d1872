package segment

import (
	"testing"
	"time"

	"github.com/chaos-io/playabooth/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     config.SegmenterConfig
		want    any
		wantErr bool
	}{
		{name: "empty", cfg: config.SegmenterConfig{}, want: None{}},
		{name: "none", cfg: config.SegmenterConfig{Kind: "none"}, want: None{}},
		{name: "remote", cfg: config.SegmenterConfig{Kind: "remote", URL: "http://localhost:7000", Timeout: time.Second}, want: &Remote{}},
		{name: "remote without url", cfg: config.SegmenterConfig{Kind: "remote"}, wantErr: true},
		{name: "unknown", cfg: config.SegmenterConfig{Kind: "sam"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, got)
		})
	}
}
