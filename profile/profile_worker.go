package profile

import (
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"

	"github.com/google/pprof/profile"
)

// since we are assuming usage of this package from a single go routine, this
// channel only has one "producer", and one "consumer". its purpose is to
// guarantee the order of execution of adding / removing a profiling session
// and sampling events, while enabling the assembler to sample the events
// asynchronously.
var chCommands = make(chan command, 100)
var onceInit sync.Once

type command struct {
	p      *Profile
	pc     []uintptr
	remove bool
}

func worker() {
	for c := range chCommands {
		if c.p != nil {
			if c.remove {
				for i := 0; i < len(sessions); i++ {
					if sessions[i] == c.p {
						sessions[i] = sessions[len(sessions)-1]
						sessions = sessions[:len(sessions)-1]
						break
					}
				}
				close(c.p.chDone)

				// decrement active sessions
				atomic.AddUint32(&activeSessions, ^uint32(0))
			} else {
				sessions = append(sessions, c.p)
			}
			continue
		}

		collectSample(c.pc)
	}

}

// collectSample must be called from the worker go routine
func collectSample(pc []uintptr) {
	// for each session we may have a distinct sample, since ids of functions
	// and locations may mismatch
	samples := make([]*profile.Sample, len(sessions))
	for i := range samples {
		samples[i] = &profile.Sample{Value: []int64{1}}
	}

	frames := runtime.CallersFrames(pc)
	// A fixed number of pcs can expand to an indefinite number of Frames.
	for {
		frame, more := frames.Next()

		if strings.HasSuffix(frame.Function, ".func1") {
			// filter anonymous closures wrapping the kernel invocation
			if more {
				continue
			}
			break
		}

		// filter assembler-private plumbing from the trace
		if filterAssemblePrivateFunc(frame.Function) {
			if more {
				continue
			}
			break
		}

		frame.Function = strings.ReplaceAll(frame.Function, "[...]", "[T]")

		for i := range samples {
			samples[i].Location = append(samples[i].Location, sessions[i].getLocation(&frame))
		}

		if !more {
			break
		}
	}

	for i := range sessions {
		if len(samples[i].Location) == 0 {
			continue
		}
		sessions[i].pprof.Sample = append(sessions[i].pprof.Sample, samples[i])
	}
}

func filterAssemblePrivateFunc(f string) bool {
	const prefix = "github.com/wyvern-fem/wyvern/assemble."
	if strings.HasPrefix(f, prefix) && len(f) > len(prefix) {
		// unexported assembler helpers are noise in user traces
		c := []rune(f)[len(prefix)]
		if unicode.IsLower(c) || c == '(' {
			return true
		}
	}
	return false
}
