package devicelist

import (
	"errors"
	"testing"
)

func TestRunOptimistic(t *testing.T) {
	applyErr := errors.New("nothing to apply")
	callErr := errors.New("server down")

	tests := []struct {
		name         string
		applyErr     error
		callErr      error
		wantCalled   bool
		wantConfirm  bool
		wantRollback bool
		wantErr      error
	}{
		{name: "success confirms", wantCalled: true, wantConfirm: true},
		{name: "failure rolls back", callErr: callErr, wantCalled: true, wantRollback: true, wantErr: callErr},
		{name: "apply failure short-circuits", applyErr: applyErr, wantErr: applyErr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var called, confirmed, rolledBack bool
			var confirmedWith int
			var rollbackCause error

			err := RunOptimistic(
				func() error { return tt.applyErr },
				func() (int, error) {
					called = true
					return 42, tt.callErr
				},
				func(v int) {
					confirmed = true
					confirmedWith = v
				},
				func(cause error) {
					rolledBack = true
					rollbackCause = cause
				},
			)

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("RunOptimistic() error = %v, want %v", err, tt.wantErr)
			}
			if called != tt.wantCalled {
				t.Errorf("call ran = %v, want %v", called, tt.wantCalled)
			}
			if confirmed != tt.wantConfirm {
				t.Errorf("confirm ran = %v, want %v", confirmed, tt.wantConfirm)
			}
			if rolledBack != tt.wantRollback {
				t.Errorf("rollback ran = %v, want %v", rolledBack, tt.wantRollback)
			}
			if confirmed && confirmedWith != 42 {
				t.Errorf("expected confirm to receive the call result, got %d", confirmedWith)
			}
			if rolledBack && !errors.Is(rollbackCause, callErr) {
				t.Errorf("expected rollback to receive the call error, got %v", rollbackCause)
			}
		})
	}
}
