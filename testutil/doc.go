/*
Package testutil provides fixtures for testing the matching pipeline.

# Configuration Generators

	// Default geotemporal config with encryption on
	cfg := testutil.NewTestConfig()

	// Exact mode, plaintext responses
	cfg = testutil.NewTestConfig(
	    testutil.WithMode(protocol.ModeExact),
	    testutil.WithEncryption(false),
	)

# Dataset Builders

	central := testutil.NewCentral(protocol.ModeGeotemporal).
	    Add(protocol.MustToken("u4pruydqqv"), 1000, 1700).
	    Build()

	queries := testutil.NewQueryBatch(protocol.ModeGeotemporal).
	    Add(42, protocol.MustToken("u4pruydqqv"), 1550).
	    Build()

GenerateTestWorkload produces larger seeded random inputs for property
style tests such as chunk-count invariance.

This package is intended for testing purposes only and should not be used in
production code.
*/
package testutil
