package db

import (
	"context"
	"strings"

	"github.com/leapstack-labs/leaperl/internal/hir"
)

// PrintForm lowers the form at idx and renders it. ok is false for forms
// that have no printed form, such as -export or -include.
func (s *Snapshot) PrintForm(ctx context.Context, file hir.FileID, idx hir.FormIdx) (text string, ok bool, err error) {
	fl, err := s.FormList(ctx, file)
	if err != nil {
		return "", false, err
	}
	switch idx.Kind {
	case hir.FormFunction:
		fb, err := s.FunctionBody(ctx, file, idx.Index)
		if err != nil {
			return "", false, err
		}
		return hir.PrintFunction(fb, &fl.Functions[idx.Index]), true, nil
	case hir.FormTypeAlias:
		tb, err := s.TypeBody(ctx, file, idx.Index)
		if err != nil {
			return "", false, err
		}
		return hir.PrintType(tb, &fl.TypeAliases[idx.Index]), true, nil
	case hir.FormSpec:
		sb, err := s.SpecBody(ctx, file, idx.Index)
		if err != nil {
			return "", false, err
		}
		return hir.PrintSpec(sb, &fl.Specs[idx.Index], false), true, nil
	case hir.FormCallback:
		sb, err := s.CallbackBody(ctx, file, idx.Index)
		if err != nil {
			return "", false, err
		}
		return hir.PrintSpec(sb, &fl.Callbacks[idx.Index], true), true, nil
	case hir.FormRecord:
		rb, err := s.RecordBody(ctx, file, idx.Index)
		if err != nil {
			return "", false, err
		}
		return hir.PrintRecord(rb, &fl.Records[idx.Index]), true, nil
	case hir.FormAttribute:
		ab, err := s.AttributeBody(ctx, file, idx.Index)
		if err != nil {
			return "", false, err
		}
		return hir.PrintAttribute(ab, &fl.Attributes[idx.Index]), true, nil
	case hir.FormCompileOption:
		ab, err := s.CompileBody(ctx, file, idx.Index)
		if err != nil {
			return "", false, err
		}
		return hir.PrintCompileOption(ab), true, nil
	}
	return "", false, nil
}

// PrintFile renders every printable form of file, separated by blank
// lines.
func (s *Snapshot) PrintFile(ctx context.Context, file hir.FileID) (string, error) {
	fl, err := s.FormList(ctx, file)
	if err != nil {
		return "", err
	}
	var out []string
	for _, idx := range fl.Forms() {
		text, ok, err := s.PrintForm(ctx, file, idx)
		if err != nil {
			return "", err
		}
		if ok {
			out = append(out, text)
		}
	}
	return strings.Join(out, "\n\n"), nil
}
