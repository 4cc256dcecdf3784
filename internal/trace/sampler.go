package trace

// alwaysSampler samples every span; the default for a running server.
type alwaysSampler struct{}

func (s *alwaysSampler) ShouldSample(name string) bool { return true }

// AlwaysSample returns a sampler that samples every span. This is the
// default a nil Instrumentation.Tracer normalizes to.
func AlwaysSample() Sampler { return &alwaysSampler{} }

// neverSampler samples nothing; used when tracing is disabled entirely
// (config.Config.EnableTracing = false) to skip span allocation on the
// hot path without touching any call site.
type neverSampler struct{}

func (s *neverSampler) ShouldSample(name string) bool { return false }

// NeverSample returns a sampler that samples nothing.
func NeverSample() Sampler { return &neverSampler{} }
