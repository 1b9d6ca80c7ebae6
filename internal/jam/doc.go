// Package jam provides the shared primitives of the performance pipeline.
//
// The package defines the data that flows through one cycle tick and the
// interfaces every stage implements:
//
//   - [ControlVector]: raw performer input, every component in [0,1]
//   - [LatentVector]: shaped, denoised form of the control vector
//   - [AgentResponse]: bias emitted by the behavioral agent
//   - [SynthParams]: engine-specific synthesis parameters
//   - [AudioBuffer]: one chunk of mono float32 audio
//   - [Source], [Shaper], [Agent], [Mapper], [Engine], [Sink]: stage contracts
//
// # Example
//
//	shaper := shaping.NewTemporal(cfg.Shaper, cfg.TickInterval())
//	latent := shaper.Shape(jam.ControlVector{0.2, 0.4, 0.1, 0.9})
//	resp := agent.Respond(latent)
//	params := mapper.Map(latent, resp)
//	buf := engine.Generate(100*time.Millisecond, params)
//
// # Thread Safety
//
// Stages are NOT thread-safe. A cycle owns its stages and drives them from a
// single goroutine; the only value crossing goroutines is the latest control
// vector, published through [Cell].
package jam
