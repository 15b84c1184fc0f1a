package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/shopware/php-typeinfer/internal/infer"
	"github.com/shopware/php-typeinfer/internal/php"
	"github.com/shopware/php-typeinfer/internal/typedump"
	"github.com/shopware/php-typeinfer/internal/types"
)

// what a method target resolves to
type resolveMode int

const (
	modeReturn resolveMode = iota
	modeParams
	modeThrows
)

// target is one command line lookup: "Class", "Class::method", "Class::$property"
// or "function()". A class ending in "\*" stands for every class of that namespace.
type target struct {
	raw      string
	class    string
	member   string
	property bool
	function bool
}

func parseTarget(raw string) target {
	t := target{raw: raw}
	name := strings.TrimPrefix(strings.TrimSpace(raw), "\\")

	if class, member, ok := strings.Cut(name, "::"); ok {
		t.class = class
		t.member = strings.TrimSuffix(member, "()")
		if strings.HasPrefix(t.member, "$") {
			t.member = t.member[1:]
			t.property = true
		}
		return t
	}
	if strings.HasSuffix(name, "()") {
		t.class = strings.TrimSuffix(name, "()")
		t.function = true
		return t
	}
	t.class = name
	return t
}

func (t target) wildcard() (string, bool) {
	ns, ok := strings.CutSuffix(t.class, "\\*")
	return ns, ok
}

// namespaceClasses lists the classes declared in a namespace or below it.
type namespaceClasses func(namespace string) ([]string, error)

func newResolveCommand() *cobra.Command {
	var params, throws bool

	cmd := &cobra.Command{
		Use:   "resolve [root] <target>...",
		Short: "Print the inferred types of classes, methods, properties and functions as JSON",
		Long: "Targets are Class, Class::method, Class::$property or function(). " +
			"Namespace\\* expands to every class of the namespace.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := ""
			if len(args) > 1 && isDir(args[0]) {
				root, args = args[0], args[1:]
			}
			mode := modeReturn
			switch {
			case params && throws:
				return fmt.Errorf("--params and --throws cannot be combined")
			case params:
				mode = modeParams
			case throws:
				mode = modeThrows
			}

			p, err := openProject(cmd, root)
			if err != nil {
				return err
			}
			defer p.close()

			index := php.NewIndex(p.logger)
			defer func() { _ = index.Close() }()

			var lister namespaceClasses
			if p.settings.NoCache {
				if err := index.LoadDir(cmd.Context(), p.root); err != nil {
					return err
				}
				lister = loadedClasses(index)
			} else {
				scanner, classes, err := p.openScanner()
				if err != nil {
					return err
				}
				defer func() { _ = scanner.Close() }()
				if err := scanner.IndexAll(cmd.Context()); err != nil {
					return err
				}
				index.SetLocator(classes)
				lister = indexedClasses(classes)
			}

			run, err := infer.NewRun(index, p.settings.Infer, infer.WithLogger(p.logger))
			if err != nil {
				return err
			}

			entries, resolveErr := resolveTargets(run, index, lister, args, mode)
			doc, err := typedump.Document(entries)
			if err != nil {
				return multierr.Append(resolveErr, err)
			}
			if _, err := cmd.OutOrStdout().Write(doc); err != nil {
				return multierr.Append(resolveErr, err)
			}
			return resolveErr
		},
	}
	cmd.Flags().BoolVar(&params, "params", false, "print the parameter types of method targets")
	cmd.Flags().BoolVar(&throws, "throws", false, "print what method targets may throw")
	return cmd
}

func loadedClasses(index *php.Index) namespaceClasses {
	return func(namespace string) ([]string, error) {
		prefix := strings.ToLower(namespace) + "\\"
		var names []string
		for _, name := range index.GetClassNames() {
			if strings.HasPrefix(strings.ToLower(name), prefix) {
				names = append(names, name)
			}
		}
		return names, nil
	}
}

func indexedClasses(classes *php.ClassIndexer) namespaceClasses {
	return func(namespace string) ([]string, error) {
		locations, err := classes.ClassesInNamespace(namespace)
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(locations))
		for _, l := range locations {
			names = append(names, l.Name)
		}
		return names, nil
	}
}

// resolveTargets resolves every target, expanding namespace wildcards. A failing
// target is reported in its entry and in the combined error, the others continue.
func resolveTargets(run *infer.Run, index *php.Index, lister namespaceClasses, raw []string, mode resolveMode) ([]typedump.Entry, error) {
	var entries []typedump.Entry
	var errs error

	add := func(name string, typ types.Type, err error) {
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
		}
		entries = append(entries, typedump.Entry{Target: name, Type: typ, Err: err})
	}

	for _, r := range raw {
		t := parseTarget(r)
		ns, ok := t.wildcard()
		if !ok {
			typ, err := resolveTarget(run, index, t, mode)
			add(t.raw, typ, err)
			continue
		}

		classes, err := lister(ns)
		if err != nil {
			add(t.raw, nil, err)
			continue
		}
		if len(classes) == 0 {
			add(t.raw, nil, fmt.Errorf("no classes in namespace %s", ns))
			continue
		}
		for _, class := range classes {
			expanded := t
			expanded.class = class
			expanded.raw = class
			if t.member != "" {
				expanded.raw += "::" + t.member
			}
			typ, err := resolveTarget(run, index, expanded, mode)
			add(expanded.raw, typ, err)
		}
	}
	return entries, errs
}

func resolveTarget(run *infer.Run, index *php.Index, t target, mode resolveMode) (types.Type, error) {
	switch {
	case t.function:
		return run.FunctionReturnType(t.class)
	case t.property:
		return run.PropertyType(t.class, t.member)
	case t.member == "":
		if index.GetClass(t.class) == nil && index.GetFunction(t.class) != nil {
			return run.FunctionReturnType(t.class)
		}
		return run.ClassType(t.class)
	}

	switch mode {
	case modeParams:
		params, err := run.ParameterTypes(t.class, t.member)
		if err != nil {
			return nil, err
		}
		shape := types.Shape()
		for _, p := range params {
			shape = shape.With(p.Name, p.Type, p.Optional)
		}
		return shape, nil
	case modeThrows:
		thrown, err := run.ThrownTypes(t.class, t.member)
		if err != nil {
			return nil, err
		}
		if len(thrown) == 0 {
			return types.Void(), nil
		}
		return types.Union(thrown...), nil
	}
	return run.MethodReturnType(t.class, t.member)
}
