package approval

import (
	"errors"
	"strings"
	"testing"
)

func TestStatus_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		status   Status
		expected bool
	}{
		{"ready", StatusReadyForL1, true},
		{"final", StatusApprovedFinal, true},
		{"rejected", StatusL3Rejected, true},
		{"invalid", Status("INVALID"), false},
		{"empty", Status(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.IsValid(); got != tt.expected {
				t.Errorf("Status.IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestStatus_Rank(t *testing.T) {
	tests := []struct {
		status Status
		rank   int
	}{
		{StatusReadyForL1, 0},
		{StatusL1Approved, 1},
		{StatusL2Approved, 2},
		{StatusApprovedFinal, 3},
		{StatusL1Rejected, 0},
		{StatusL2Rejected, 0},
		{StatusL3Rejected, 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.Rank(); got != tt.rank {
				t.Errorf("Status.Rank() = %d, want %d", got, tt.rank)
			}
		})
	}
}

func TestNextOnApprove_HappyPath(t *testing.T) {
	steps := []struct {
		current Status
		level   int
		want    Status
	}{
		{StatusReadyForL1, 1, StatusL1Approved},
		{StatusL1Approved, 2, StatusL2Approved},
		{StatusL2Approved, 3, StatusApprovedFinal},
	}

	for _, tt := range steps {
		next, err := NextOnApprove(tt.current, tt.level)
		if err != nil {
			t.Fatalf("NextOnApprove(%s, %d) failed: %v", tt.current, tt.level, err)
		}
		if next != tt.want {
			t.Errorf("NextOnApprove(%s, %d) = %s, want %s", tt.current, tt.level, next, tt.want)
		}
	}
}

func TestNextOnApprove_PrerequisiteNotMet(t *testing.T) {
	// For every level, approving from any status below the required
	// predecessor must fail with ErrPrerequisiteNotMet.
	tests := []struct {
		current Status
		level   int
	}{
		{StatusReadyForL1, 2},
		{StatusReadyForL1, 3},
		{StatusL1Approved, 3},
		{StatusL1Rejected, 2},
		{StatusL2Rejected, 3},
	}

	for _, tt := range tests {
		_, err := NextOnApprove(tt.current, tt.level)
		if !errors.Is(err, ErrPrerequisiteNotMet) {
			t.Errorf("NextOnApprove(%s, %d) error = %v, want ErrPrerequisiteNotMet", tt.current, tt.level, err)
		}
	}
}

func TestNextOnApprove_AlreadyApproved(t *testing.T) {
	tests := []struct {
		current Status
		level   int
	}{
		{StatusL1Approved, 1},
		{StatusL2Approved, 1},
		{StatusL2Approved, 2},
		{StatusApprovedFinal, 1},
		{StatusApprovedFinal, 2},
		{StatusApprovedFinal, 3},
	}

	for _, tt := range tests {
		_, err := NextOnApprove(tt.current, tt.level)
		if !errors.Is(err, ErrAlreadyApproved) {
			t.Errorf("NextOnApprove(%s, %d) error = %v, want ErrAlreadyApproved", tt.current, tt.level, err)
		}
	}
}

func TestNextOnApprove_Level1AfterRejection(t *testing.T) {
	// A rejection at any level sends the chain back through level 1.
	for _, rejected := range []Status{StatusL1Rejected, StatusL2Rejected, StatusL3Rejected} {
		next, err := NextOnApprove(rejected, 1)
		if err != nil {
			t.Fatalf("NextOnApprove(%s, 1) failed: %v", rejected, err)
		}
		if next != StatusL1Approved {
			t.Errorf("NextOnApprove(%s, 1) = %s, want %s", rejected, next, StatusL1Approved)
		}
	}
}

func TestNextOnApprove_InvalidLevel(t *testing.T) {
	for _, level := range []int{0, 4, -1} {
		if _, err := NextOnApprove(StatusReadyForL1, level); !errors.Is(err, ErrInvalidLevel) {
			t.Errorf("NextOnApprove(level=%d) error = %v, want ErrInvalidLevel", level, err)
		}
	}
}

func TestNextOnReject_ReasonRules(t *testing.T) {
	tests := []struct {
		name    string
		current Status
		level   int
		reason  string
		wantErr error
		want    Status
	}{
		{"level 1 empty reason", StatusReadyForL1, 1, "  ", ErrValidation, ""},
		{"level 1 any reason", StatusReadyForL1, 1, "missing files", nil, StatusL1Rejected},
		{"level 2 any reason", StatusL1Approved, 2, "counts off", nil, StatusL2Rejected},
		{"level 3 too short", StatusL2Approved, 3, "Too short", ErrValidation, ""},
		{"level 3 long enough", StatusL2Approved, 3, "Holdings data discrepancy found", nil, StatusL3Rejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := NextOnReject(tt.current, tt.level, tt.reason)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("NextOnReject() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NextOnReject() failed: %v", err)
			}
			if next != tt.want {
				t.Errorf("NextOnReject() = %s, want %s", next, tt.want)
			}
		})
	}
}

func TestNextOnReject_PrerequisiteNotMet(t *testing.T) {
	_, err := NextOnReject(StatusReadyForL1, 3, strings.Repeat("x", 25))
	if !errors.Is(err, ErrPrerequisiteNotMet) {
		t.Errorf("NextOnReject() error = %v, want ErrPrerequisiteNotMet", err)
	}
}

func TestNextOnRejectFinal(t *testing.T) {
	tests := []struct {
		name    string
		current Status
		reason  string
		wantErr error
	}{
		{"25 chars fails", StatusApprovedFinal, strings.Repeat("x", 25), ErrValidation},
		{"35 chars succeeds", StatusApprovedFinal, strings.Repeat("x", 35), nil},
		{"not final", StatusL2Approved, strings.Repeat("x", 35), ErrPrerequisiteNotMet},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := NextOnRejectFinal(tt.current, tt.reason)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("NextOnRejectFinal() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NextOnRejectFinal() failed: %v", err)
			}
			if next != StatusReadyForL1 {
				t.Errorf("NextOnRejectFinal() = %s, want %s", next, StatusReadyForL1)
			}
		})
	}
}

func TestValidateReason_CountsCharactersNotBytes(t *testing.T) {
	// Ten CJK characters occupy thirty bytes but are still ten characters:
	// too short for level 3. Twenty of them meet the floor.
	short := strings.Repeat("对", 10)
	if err := ValidateReason(LevelThree, short); !errors.Is(err, ErrValidation) {
		t.Errorf("ValidateReason(10 CJK chars) error = %v, want ErrValidation", err)
	}

	long := strings.Repeat("对", 20)
	if err := ValidateReason(LevelThree, long); err != nil {
		t.Errorf("ValidateReason(20 CJK chars) error = %v, want nil", err)
	}

	if err := ValidateReason(LevelPostFinal, strings.Repeat("对", 30)); err != nil {
		t.Errorf("ValidateReason(post-final, 30 CJK chars) error = %v, want nil", err)
	}
}

func TestValidateReason_TrimsWhitespace(t *testing.T) {
	// 19 significant characters padded with spaces must still fail level 3.
	padded := "  " + strings.Repeat("y", 19) + "  "
	if err := ValidateReason(LevelThree, padded); !errors.Is(err, ErrValidation) {
		t.Errorf("ValidateReason() error = %v, want ErrValidation", err)
	}
}

func TestCanAct(t *testing.T) {
	tests := []struct {
		current  Status
		level    int
		expected bool
	}{
		{StatusReadyForL1, 1, true},
		{StatusL1Approved, 2, true},
		{StatusL2Approved, 3, true},
		{StatusL1Rejected, 1, true},
		{StatusL3Rejected, 1, true},
		{StatusReadyForL1, 2, false},
		{StatusL1Rejected, 2, false},
		{StatusApprovedFinal, 3, false},
		{StatusReadyForL1, 4, false},
	}

	for _, tt := range tests {
		if got := CanAct(tt.current, tt.level); got != tt.expected {
			t.Errorf("CanAct(%s, %d) = %v, want %v", tt.current, tt.level, got, tt.expected)
		}
	}
}
