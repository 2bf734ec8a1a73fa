// Package epi is the compartmental model library.
//
// Three model variants are provided, selected by the [Variant] tag:
//
//   - [SIR]: susceptible, infected, recovered
//   - [SEIR]: adds an exposed (incubating) compartment
//   - [Chagas]: SEIC humans coupled to SEI triatomine vectors and SI reservoir animals
//
// Every model implements [dynamo.System] and [dynamo.Configurable]. Derivatives
// are pure functions of (state, parameters): no hidden state, no clamping and no
// input validation. Validation belongs to the caller (see package experiment).
//
// # Conservation
//
// Closed species keep their total constant. Species with births and deaths
// follow dN/dt = Birth - Death*N, see [Demography.Expected].
package epi
