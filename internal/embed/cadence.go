package embed

// Assignment schedules one fragment onto one frame.
type Assignment struct {
	Frame    int
	Fragment int
}

// FramesPerFragment is the frame spacing between consecutive fragments.
func FramesPerFragment(frameCount, fragmentCount int) int {
	if fragmentCount <= 0 {
		return 1
	}
	return max(1, frameCount/fragmentCount)
}

// PlanCadence assigns fragment i to frame i*FramesPerFragment while frames
// last. Fragments beyond the final frame are left unscheduled; the caller
// can compare len(result) with fragmentCount to detect that.
func PlanCadence(frameCount, fragmentCount int) []Assignment {
	if frameCount <= 0 || fragmentCount <= 0 {
		return nil
	}
	step := FramesPerFragment(frameCount, fragmentCount)
	plan := make([]Assignment, 0, min(fragmentCount, frameCount))
	for i := 0; i < fragmentCount; i++ {
		frame := i * step
		if frame >= frameCount {
			break
		}
		plan = append(plan, Assignment{Frame: frame, Fragment: i})
	}
	return plan
}
