package infer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shopware/php-typeinfer/internal/types"
)

const expressionSource = `<?php

namespace App;

use Vendor\Lib\Client;

function hex() { return 0x1F; }
function separated() { return 1_000; }
function fraction() { return 1.5; }
function negative() { return -5; }
function plain() { return "plain"; }
function interpolated($name) { return "hi $name"; }
function joined() { return 'a' . 'b' . 1; }
function toInt() { return (int) '5'; }
function toArray() { return (array) 'x'; }
function toObject() { return (object) ['a' => 1]; }
function spaceship($a, $b) { return $a <=> $b; }
function compared($a, $b) { return $a === $b; }
function negated() { return !true; }
function chosen(bool $c) { return $c ? 'yes' : 'no'; }
function matched(int $x) { return match ($x) { 1 => 'one', default => 2 }; }
function aliased() { return Client::class; }
function qualified() { return \Other\Thing::class; }
function added() { return ['a' => 1] + ['a' => 2, 'b' => 3]; }
function eol() { return PHP_EOL; }
function flags() { return JSON_THROW_ON_ERROR; }
function printed() { return print 'x'; }
function arrow() { return fn () => 1; }
function incremented() { $i = 1; return $i++; }
function nothing() { return null; }
function unknownConstant() { return SOMETHING_ELSE; }
`

func TestExpressionTypes(t *testing.T) {
	run, _ := newTestRun(t, Config{}, expressionSource)

	testCases := []struct {
		function string
		expected string
	}{
		{function: "hex", expected: "31"},
		{function: "separated", expected: "1000"},
		{function: "fraction", expected: "1.5"},
		{function: "negative", expected: "-5"},
		{function: "plain", expected: "'plain'"},
		{function: "interpolated", expected: "string"},
		{function: "joined", expected: "'ab1'"},
		{function: "toInt", expected: "int"},
		{function: "toArray", expected: "array{0: 'x'}"},
		{function: "toObject", expected: "stdClass"},
		{function: "spaceship", expected: "-1|0|1"},
		{function: "compared", expected: "bool"},
		{function: "negated", expected: "bool"},
		{function: "chosen", expected: "'no'|'yes'"},
		{function: "matched", expected: "'one'|2"},
		{function: "aliased", expected: "Vendor\\Lib\\Client::class"},
		{function: "qualified", expected: "Other\\Thing::class"},
		{function: "added", expected: "array{a: 1, b: 3}"},
		{function: "eol", expected: "string"},
		{function: "flags", expected: "int"},
		{function: "printed", expected: "1"},
		{function: "arrow", expected: "callable"},
		{function: "incremented", expected: "int"},
		{function: "nothing", expected: "null"},
		{function: "unknownConstant", expected: "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.function, func(t *testing.T) {
			typ, err := run.FunctionReturnType("App\\" + tc.function)
			assert.Equal(t, tc.expected, render(t, typ, err))
		})
	}
}

func TestIntegerLiteral(t *testing.T) {
	testCases := []struct {
		text     string
		expected string
	}{
		{text: "42", expected: "42"},
		{text: "0x2A", expected: "42"},
		{text: "0b101", expected: "5"},
		{text: "017", expected: "15"},
		{text: "0o17", expected: "15"},
		{text: "9223372036854775808", expected: "9223372036854775808.0"},
	}

	for _, tc := range testCases {
		t.Run(tc.text, func(t *testing.T) {
			assert.Equal(t, tc.expected, types.Render(integerLiteral(tc.text)))
		})
	}
}

func TestUnquoteSingle(t *testing.T) {
	assert.Equal(t, "it's", unquoteSingle(`'it\'s'`))
	assert.Equal(t, `a\b`, unquoteSingle(`'a\\b'`))
	assert.Equal(t, `a\nb`, unquoteSingle(`'a\nb'`))
}
