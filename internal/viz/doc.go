// Package viz renders epidemic runs in the terminal.
//
//   - [Plot]: asciigraph line plots of selected compartments
//   - [SummaryTable]: the side-by-side summary of several runs
//   - [Player]: a Bubble Tea playback of a finished trajectory
//
// # Player keys
//
//	Space - Pause/Resume playback
//	←/→   - Step one sample back/forward
//	+/-   - Change playback speed
//	Tab   - Cycle the highlighted compartment
//	R     - Restart from day 0
//	T     - Cycle color themes
//	Q     - Quit
package viz
