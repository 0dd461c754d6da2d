// Package engine evaluates terminal states of a 3x3 tic-tac-toe board.
// It is pure: verdicts depend only on the final board configuration.
package engine

import "strings"

// Marks as stored in the board string.
const (
	CellEmpty byte = '-'
	MarkX     byte = 'X'
	MarkO     byte = 'O'
)

// BoardSize is the number of cells; EmptyBoard is a fresh game.
const (
	BoardSize  = 9
	EmptyBoard = "---------"
)

// Verdict is the terminal outcome of a board.
type Verdict string

const (
	VerdictX    Verdict = "X"
	VerdictO    Verdict = "O"
	VerdictDraw Verdict = "draw"
	VerdictNone Verdict = "none"
)

// The eight win lines: three rows, three columns, two diagonals.
var winLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// Evaluate returns the verdict for a 9-cell board string over '-', 'X', 'O'.
// A line wins when all three cells are non-empty and identical. With no
// winning line, a full board is a draw and anything else is still open.
func Evaluate(board string) Verdict {
	if len(board) != BoardSize {
		return VerdictNone
	}
	for _, line := range winLines {
		a, b, c := line[0], line[1], line[2]
		if board[a] != CellEmpty && board[a] == board[b] && board[b] == board[c] {
			if board[a] == MarkX {
				return VerdictX
			}
			return VerdictO
		}
	}
	if !strings.ContainsRune(board, rune(CellEmpty)) {
		return VerdictDraw
	}
	return VerdictNone
}
