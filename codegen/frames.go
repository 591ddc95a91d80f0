package codegen

type frameKind uint8

const (
	frameBlock frameKind = iota
	frameLoop
	frameIf
)

func (k frameKind) String() string {
	switch k {
	case frameBlock:
		return "block"
	case frameLoop:
		return "loop"
	case frameIf:
		return "if"
	default:
		return "unknown"
	}
}

// LoopContext names the branch targets of an enclosing loop as positions
// in the control stack, not as relative depths. Relative depths are
// computed at each branch site.
type LoopContext struct {
	BreakDepth    int
	ContinueDepth int
}

// controlStack mirrors the structured frames open at the current emission
// point. The implicit function frame is not tracked; exiting it is a return.
type controlStack struct {
	frames []frameKind
	loops  []LoopContext
}

// open pushes a frame and returns its position.
func (s *controlStack) open(k frameKind) int {
	s.frames = append(s.frames, k)
	return len(s.frames) - 1
}

func (s *controlStack) close() {
	s.frames = s.frames[:len(s.frames)-1]
}

// depth returns the relative label index of the frame at pos: 0 for the
// innermost open frame.
func (s *controlStack) depth(pos int) uint32 {
	return uint32(len(s.frames) - 1 - pos)
}

func (s *controlStack) size() int {
	return len(s.frames)
}

func (s *controlStack) pushLoop(ctx LoopContext) {
	s.loops = append(s.loops, ctx)
}

func (s *controlStack) popLoop() {
	s.loops = s.loops[:len(s.loops)-1]
}

// loop returns the innermost loop context.
func (s *controlStack) loop() (LoopContext, bool) {
	if len(s.loops) == 0 {
		return LoopContext{}, false
	}
	return s.loops[len(s.loops)-1], true
}
