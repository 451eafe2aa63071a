package job

// environment implements pipeline.Environment for one RunComposition or
// RunServerPipeline call. It is constructed fresh per call rather than
// mutated-then-restored on a shared Job value (spec.md §4.4 steps 2 and 7
// describe Python's "temporarily wrap send, restore after" dance; a
// locally scoped value gives the same externally observable behavior
// without a field to forget to restore).
type environment struct {
	sendFn    func(payload any) error
	receiveFn func() map[string]any
	jobSource string
	basepath  string
	hasComp   bool
}

func (e *environment) Send(payload any) error {
	if e.sendFn == nil {
		return nil
	}
	return e.sendFn(payload)
}

func (e *environment) Receive() map[string]any {
	if e.receiveFn == nil {
		return nil
	}
	return e.receiveFn()
}

func (e *environment) JobSource() string { return e.jobSource }

func (e *environment) CurrentNodeBasepath() (string, bool) { return e.basepath, e.hasComp }
