// Package binding populates request structs from path, query, body, form,
// header and cookie values and validates them with go-playground/validator.
//
// A request struct declares where each field comes from with a source tag:
//
//	type listRequest struct {
//	    Skip  int     `query:"skip,optional" validate:"gte=0"`
//	    Limit int     `query:"limit,optional" validate:"lte=100"`
//	    Tags  []string `query:"tags"`
//	    Key   *string `header:"x-api-key"`
//	    Body  userBody `body:"json"`
//	}
//
// Non-pointer scalars are required unless marked optional, in which case the
// preset value is kept when the input is absent. Pointers and slices are
// always optional. Bind reports every coercion and constraint failure at once.
package binding

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Source names where a value was read from.
type Source string

// Input sources.
const (
	SourcePath   Source = "path"
	SourceQuery  Source = "query"
	SourceBody   Source = "body"
	SourceForm   Source = "form"
	SourceHeader Source = "header"
	SourceCookie Source = "cookie"
)

var scalarSources = []Source{SourcePath, SourceQuery, SourceForm, SourceHeader, SourceCookie}

// EmailPattern is the local@domain.tld shape accepted by the simple_email rule.
const EmailPattern = `^[\w\.-]+@[\w\.-]+\.\w+$`

var emailRe = regexp.MustCompile(EmailPattern)

const defaultMaxMemory = 8 << 20

// PathFunc resolves a named path parameter.
type PathFunc func(r *http.Request, name string) string

// Binder binds and validates requests. It is safe for concurrent use once
// configured.
type Binder struct {
	validate  *validator.Validate
	pathParam PathFunc
	maxMemory int64
}

// Option configures a Binder.
type Option func(*Binder)

// WithPathFunc overrides path parameter lookup. Defaults to chi.URLParam.
func WithPathFunc(fn PathFunc) Option {
	return func(b *Binder) {
		if fn != nil {
			b.pathParam = fn
		}
	}
}

// WithMaxMemory bounds in-memory multipart form parsing.
func WithMaxMemory(n int64) Option {
	return func(b *Binder) {
		if n > 0 {
			b.maxMemory = n
		}
	}
}

// New creates a Binder with the simple_email rule registered.
func New(opts ...Option) *Binder {
	v := validator.New()
	_ = v.RegisterValidation("simple_email", func(fl validator.FieldLevel) bool {
		return emailRe.MatchString(fl.Field().String())
	})
	b := &Binder{
		validate:  v,
		pathParam: chi.URLParam,
		maxMemory: defaultMaxMemory,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// RegisterStructRule adds a struct-level rule for the given request types.
// Errors reported through validator.StructLevel are located like field errors.
func (b *Binder) RegisterStructRule(fn validator.StructLevelFunc, types ...any) {
	b.validate.RegisterStructValidation(fn, types...)
}

// Bind fills dst from r and validates it. It returns a *ValidationError when
// any input is missing, cannot be coerced, or violates a constraint.
func (b *Binder) Bind(r *http.Request, dst any) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return ErrInvalidTarget
	}
	rv = rv.Elem()
	rt := rv.Type()

	st := &state{
		b:      b,
		r:      r,
		locs:   make(map[string][]any),
		failed: make(map[string]struct{}),
	}

	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		if _, ok := f.Tag.Lookup(string(SourceBody)); ok {
			st.bindBody(rv.Field(i), f)
			continue
		}
		src, name, optional, ok := fieldSource(f)
		if !ok {
			continue
		}
		st.bindField(rv.Field(i), f, src, name, optional)
	}

	if err := b.validate.StructCtx(r.Context(), dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validate %s: %w", rt.Name(), err)
		}
		for _, fe := range verrs {
			loc := st.locate(fe)
			if st.isFailed(loc) {
				continue
			}
			st.issues = append(st.issues, issueFor(fe, loc))
		}
	}

	if len(st.issues) > 0 {
		return &ValidationError{Issues: st.issues}
	}
	return nil
}

type state struct {
	b      *Binder
	r      *http.Request
	locs   map[string][]any
	failed map[string]struct{}
	issues []Issue

	formParsed bool
	formErr    error
}

func fieldSource(f reflect.StructField) (Source, string, bool, bool) {
	for _, src := range scalarSources {
		tag, ok := f.Tag.Lookup(string(src))
		if !ok {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		if name == "" {
			name = strings.ToLower(f.Name)
		}
		return src, name, opts == "optional", true
	}
	return "", "", false, false
}

func (st *state) add(issue Issue) {
	st.issues = append(st.issues, issue)
	st.failed[locString(issue.Loc)] = struct{}{}
}

// isFailed reports whether loc, or a prefix of it, already has an issue.
func (st *state) isFailed(loc []any) bool {
	for i := len(loc); i > 0; i-- {
		if _, ok := st.failed[locString(loc[:i])]; ok {
			return true
		}
	}
	return false
}

func (st *state) bindField(v reflect.Value, f reflect.StructField, src Source, name string, optional bool) {
	loc := []any{string(src), name}
	st.locs[f.Name] = loc

	raw, present, err := st.lookup(src, name)
	if err != nil {
		st.add(Issue{Loc: []any{string(src)}, Msg: err.Error(), Type: "form_invalid"})
		return
	}
	if !present {
		k := f.Type.Kind()
		if !optional && k != reflect.Pointer && k != reflect.Slice {
			st.add(Issue{Loc: loc, Msg: "Field required", Type: "missing"})
		}
		return
	}
	if perr := assign(v, raw); perr != nil {
		l := loc
		if perr.index >= 0 {
			l = append(append([]any{}, loc...), perr.index)
		}
		st.add(Issue{Loc: l, Msg: perr.msg, Type: perr.typ})
	}
}

func (st *state) lookup(src Source, name string) ([]string, bool, error) {
	switch src {
	case SourcePath:
		v := st.b.pathParam(st.r, name)
		return []string{v}, v != "", nil
	case SourceQuery:
		vals, ok := st.r.URL.Query()[name]
		return vals, ok && len(vals) > 0, nil
	case SourceForm:
		if err := st.parseForm(); err != nil {
			return nil, false, err
		}
		// An empty form field counts as absent.
		vals := st.r.PostForm[name]
		return vals, len(vals) > 0 && vals[0] != "", nil
	case SourceHeader:
		vals := st.r.Header.Values(name)
		return vals, len(vals) > 0, nil
	case SourceCookie:
		c, err := st.r.Cookie(name)
		if err != nil {
			return nil, false, nil
		}
		return []string{c.Value}, true, nil
	}
	return nil, false, nil
}

func (st *state) parseForm() error {
	if st.formParsed {
		return st.formErr
	}
	st.formParsed = true
	ct, _, _ := mime.ParseMediaType(st.r.Header.Get("Content-Type"))
	if ct == "multipart/form-data" {
		st.formErr = st.r.ParseMultipartForm(st.b.maxMemory)
	} else {
		st.formErr = st.r.ParseForm()
	}
	return st.formErr
}

func (st *state) bindBody(v reflect.Value, f reflect.StructField) {
	registerBodyLocs(st.locs, f.Name, v.Type())
	whole := []any{string(SourceBody)}

	if st.r.Body == nil {
		st.add(Issue{Loc: whole, Msg: "Field required", Type: "missing"})
		return
	}
	dec := json.NewDecoder(st.r.Body)
	err := dec.Decode(v.Addr().Interface())
	if err == nil {
		// The body must hold exactly one JSON value.
		var extra json.RawMessage
		if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
			st.add(Issue{Loc: whole, Msg: "JSON decode error", Type: "json_invalid"})
		}
		return
	}

	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, io.EOF):
		st.add(Issue{Loc: whole, Msg: "Field required", Type: "missing"})
	case errors.As(err, &typeErr):
		if typeErr.Field == "" {
			st.add(Issue{Loc: whole, Msg: "Input should be a valid dictionary or object", Type: "model_attributes_type"})
			return
		}
		loc := append([]any{string(SourceBody)}, jsonPath(typeErr.Field)...)
		typ, msg := typeMismatch(typeErr.Type)
		st.add(Issue{Loc: loc, Msg: msg, Type: typ})
	default:
		st.add(Issue{Loc: whole, Msg: "JSON decode error", Type: "json_invalid"})
	}
}

// registerBodyLocs maps Go struct namespaces under prefix to body locations
// named after the json tags.
func registerBodyLocs(locs map[string][]any, prefix string, t reflect.Type) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return
	}
	var walk func(ns string, loc []any, t reflect.Type)
	walk = func(ns string, loc []any, t reflect.Type) {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				continue
			}
			if name == "" {
				name = f.Name
			}
			fieldLoc := append(append([]any{}, loc...), name)
			locs[ns+"."+f.Name] = fieldLoc

			ft := f.Type
			for ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				walk(ns+"."+f.Name, fieldLoc, ft)
			}
		}
	}
	walk(prefix, []any{string(SourceBody)}, t)
}

// locate maps a validator error back to the input location.
func (st *state) locate(fe validator.FieldError) []any {
	ns := fe.StructNamespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		ns = rest
	}
	if loc, ok := st.locs[ns]; ok {
		return loc
	}
	if i := strings.LastIndexByte(ns, '['); i > 0 && strings.HasSuffix(ns, "]") {
		if loc, ok := st.locs[ns[:i]]; ok {
			out := append([]any{}, loc...)
			if idx, err := strconv.Atoi(ns[i+1 : len(ns)-1]); err == nil {
				return append(out, idx)
			}
			return append(out, ns[i+1:len(ns)-1])
		}
	}
	return []any{strings.ToLower(fe.Field())}
}

func jsonPath(field string) []any {
	parts := strings.Split(field, ".")
	out := make([]any, 0, len(parts))
	for _, p := range parts {
		out = append(out, p)
	}
	return out
}

type parseError struct {
	typ   string
	msg   string
	index int
}

func assign(v reflect.Value, raw []string) *parseError {
	switch v.Kind() {
	case reflect.Pointer:
		elem := reflect.New(v.Type().Elem())
		if err := assign(elem.Elem(), raw); err != nil {
			return err
		}
		v.Set(elem)
		return nil
	case reflect.Slice:
		out := reflect.MakeSlice(v.Type(), len(raw), len(raw))
		for i, s := range raw {
			if err := assignScalar(out.Index(i), s); err != nil {
				err.index = i
				return err
			}
		}
		v.Set(out)
		return nil
	default:
		return assignScalar(v, raw[0])
	}
}

func assignScalar(v reflect.Value, s string) *parseError {
	switch v.Kind() {
	case reflect.String:
		v.SetString(s)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(s, 10, v.Type().Bits())
		if err != nil {
			return &parseError{typ: "int_parsing", msg: "Input should be a valid integer, unable to parse string as an integer", index: -1}
		}
		v.SetInt(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, v.Type().Bits())
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return &parseError{typ: "float_parsing", msg: "Input should be a valid number, unable to parse string as a number", index: -1}
		}
		v.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return &parseError{typ: "bool_parsing", msg: "Input should be a valid boolean, unable to interpret input", index: -1}
		}
		v.SetBool(b)
	default:
		return &parseError{typ: "unsupported_type", msg: fmt.Sprintf("unsupported field kind %s", v.Kind()), index: -1}
	}
	return nil
}

func typeMismatch(t reflect.Type) (string, string) {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "type_error", "Input has the wrong type"
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "int_type", "Input should be a valid integer"
	case reflect.Float32, reflect.Float64:
		return "float_type", "Input should be a valid number"
	case reflect.String:
		return "string_type", "Input should be a valid string"
	case reflect.Bool:
		return "bool_type", "Input should be a valid boolean"
	case reflect.Slice, reflect.Array:
		return "list_type", "Input should be a valid list"
	default:
		return "type_error", "Input has the wrong type"
	}
}

func issueFor(fe validator.FieldError, loc []any) Issue {
	kind := fe.Kind()
	if kind == reflect.Pointer && fe.Type() != nil {
		kind = fe.Type().Elem().Kind()
	}
	p := fe.Param()
	is := Issue{Loc: loc}
	switch fe.Tag() {
	case "required":
		is.Type, is.Msg = "missing", "Field required"
	case "gt":
		is.Type, is.Msg = "greater_than", "Input should be greater than "+p
	case "gte":
		is.Type, is.Msg = "greater_than_equal", "Input should be greater than or equal to "+p
	case "lt":
		is.Type, is.Msg = "less_than", "Input should be less than "+p
	case "lte":
		is.Type, is.Msg = "less_than_equal", "Input should be less than or equal to "+p
	case "min":
		switch kind {
		case reflect.String:
			is.Type, is.Msg = "string_too_short", "String should have at least "+p+" characters"
		case reflect.Slice, reflect.Map:
			is.Type, is.Msg = "too_short", "List should have at least "+p+" items"
		default:
			is.Type, is.Msg = "greater_than_equal", "Input should be greater than or equal to "+p
		}
	case "max":
		switch kind {
		case reflect.String:
			is.Type, is.Msg = "string_too_long", "String should have at most "+p+" characters"
		case reflect.Slice, reflect.Map:
			is.Type, is.Msg = "too_long", "List should have at most "+p+" items"
		default:
			is.Type, is.Msg = "less_than_equal", "Input should be less than or equal to "+p
		}
	case "alphanum", "alphanumunicode":
		is.Type, is.Msg = "value_error", "Value error, must be alphanumeric"
	case "simple_email":
		is.Type, is.Msg = "string_pattern_mismatch", "String should match pattern '"+EmailPattern+"'"
	default:
		is.Type, is.Msg = fe.Tag(), fmt.Sprintf("Failed on the '%s' constraint", fe.Tag())
	}
	return is
}
