// Package core defines the shared language of etlite.
//
// This package contains:
//   - Step descriptions compiled from annotated SQL files (Step, Block)
//   - The parameter value model (Value, Params)
//   - Implementation function types resolved per engine (TargetFunc,
//     StrategyFunc, InvariantFunc, TestFunc, MetaFunc)
//   - Service interfaces (Conn, Adapter, Store)
//   - Configuration types (TargetConfig, MetricsConfig)
//
// The Golden Rule: pkg/core imports only the standard library and
// mapstructure. All other packages depend on core, not the reverse.
package core
