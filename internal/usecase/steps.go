package usecase

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"go.ngs.io/forecast-frames/internal/domain"
)

// AllSteps as a StepRange end selects through the last step.
const AllSteps = -1

// ErrNoSteps is returned when a selector picks no steps.
var ErrNoSteps = errors.New("no steps selected")

// ErrStepsOutOfOrder is returned when an animated accumulation selects steps
// that do not increase.
var ErrStepsOutOfOrder = errors.New("steps out of order")

// StepSelector picks forecast step indices from an axis of total steps.
type StepSelector interface {
	Select(total int) ([]int, error)
}

// StepRange selects the dense half-open range [Start, End).
type StepRange struct {
	Start int
	End   int
}

// Select implements StepSelector.
func (r StepRange) Select(total int) ([]int, error) {
	end := r.End
	if end == AllSteps {
		end = total
	}
	if r.Start < 0 || r.Start >= total {
		return nil, &domain.StepOutOfRangeError{Step: r.Start, Total: total}
	}
	if end > total {
		return nil, &domain.StepOutOfRangeError{Step: end - 1, Total: total}
	}
	if end <= r.Start {
		return nil, fmt.Errorf("step range [%d:%d): %w", r.Start, end, ErrNoSteps)
	}
	steps := make([]int, 0, end-r.Start)
	for i := r.Start; i < end; i++ {
		steps = append(steps, i)
	}
	return steps, nil
}

// StepList selects explicit indices, in the given order.
type StepList []int

// Select implements StepSelector.
func (l StepList) Select(total int) ([]int, error) {
	if len(l) == 0 {
		return nil, ErrNoSteps
	}
	for _, s := range l {
		if s < 0 || s >= total {
			return nil, &domain.StepOutOfRangeError{Step: s, Total: total}
		}
	}
	return slices.Clone(l), nil
}

// StepStride selects Start, Start+K, Start+2K, ... up to the last step.
type StepStride struct {
	Start int
	K     int
}

// Select implements StepSelector.
func (s StepStride) Select(total int) ([]int, error) {
	if s.K < 1 {
		return nil, fmt.Errorf("invalid stride %d", s.K)
	}
	if s.Start < 0 || s.Start >= total {
		return nil, &domain.StepOutOfRangeError{Step: s.Start, Total: total}
	}
	var steps []int
	for i := s.Start; i < total; i += s.K {
		steps = append(steps, i)
	}
	return steps, nil
}

// ParseSteps parses a command-line step expression:
//
//	"all"           every step
//	"3-9"           the half-open range [3, 9)
//	"3-"            step 3 through the last step
//	"1,2,3,6,9"     an explicit list
//	"0/3"           every third step starting at 0
func ParseSteps(expr string) (StepSelector, error) {
	expr = strings.TrimSpace(expr)
	switch {
	case expr == "" || strings.EqualFold(expr, "all"):
		return StepRange{Start: 0, End: AllSteps}, nil
	case strings.Contains(expr, "/"):
		start, k, _ := strings.Cut(expr, "/")
		s, err := strconv.Atoi(start)
		if err != nil {
			return nil, fmt.Errorf("invalid stride start %q: %w", start, err)
		}
		n, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("invalid stride %q: %w", k, err)
		}
		return StepStride{Start: s, K: n}, nil
	case strings.Contains(expr, ","):
		parts := strings.Split(expr, ",")
		list := make(StepList, 0, len(parts))
		for _, p := range parts {
			n, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil {
				return nil, fmt.Errorf("invalid step %q: %w", p, err)
			}
			list = append(list, n)
		}
		return list, nil
	case strings.Contains(expr, "-"):
		lo, hi, _ := strings.Cut(expr, "-")
		start, err := strconv.Atoi(lo)
		if err != nil {
			return nil, fmt.Errorf("invalid range start %q: %w", lo, err)
		}
		if hi == "" {
			return StepRange{Start: start, End: AllSteps}, nil
		}
		end, err := strconv.Atoi(hi)
		if err != nil {
			return nil, fmt.Errorf("invalid range end %q: %w", hi, err)
		}
		return StepRange{Start: start, End: end}, nil
	default:
		n, err := strconv.Atoi(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid step expression %q", expr)
		}
		return StepList{n}, nil
	}
}

// requireAscending fails unless sel picks steps in increasing order. Repeated
// steps pass here and are left to the accumulator.
func requireAscending(sel StepSelector, total int) error {
	steps, err := sel.Select(total)
	if err != nil {
		return err
	}
	for i := 1; i < len(steps); i++ {
		if steps[i] < steps[i-1] {
			return fmt.Errorf("step %d after step %d: %w", steps[i], steps[i-1], ErrStepsOutOfOrder)
		}
	}
	return nil
}
