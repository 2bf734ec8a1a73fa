// Package analysis derives views of epidemic runs beyond the time series:
//
//   - [FromTrajectory]: a 2D phase portrait, usually S against I
//   - [Sweep]: final size, peak and R0 across values of one parameter
//   - [Threshold]: the parameter value at which R0 crosses 1
//
// A sweep around the SIR transmission rate shows the epidemic threshold:
//
//	points, err := analysis.Sweep(ctx, base, "beta", dynamo.Linspace(0.05, 0.5, 10), 0)
//	beta, ok := analysis.Threshold(points)
package analysis
