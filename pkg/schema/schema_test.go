package schema

import (
	"errors"
	"strings"
	"testing"

	"github.com/OFFIS-RIT/depgraph/pkg/common"
)

func TestValidateSpec_CategoryFieldLegality(t *testing.T) {
	tests := []struct {
		name    string
		spec    VertexSpec
		wantErr string
	}{
		{
			name: "business module with legal fields",
			spec: VertexSpec{Category: common.CategoryBusinessModule, Name: "billing", Type: "Domain"},
		},
		{
			name:    "business module with microService",
			spec:    VertexSpec{Category: common.CategoryBusinessModule, Name: "billing", Type: "Domain", MicroService: "svc"},
			wantErr: "microService is not allowed for category businessModule",
		},
		{
			name: "micro service with legal fields",
			spec: VertexSpec{Category: common.CategoryMicroService, Name: "svc", Type: "mono", Description: "d"},
		},
		{
			name:    "micro service with sourceCode",
			spec:    VertexSpec{Category: common.CategoryMicroService, Name: "svc", Type: "mono", SourceCode: "x"},
			wantErr: "sourceCode is not allowed for category microService",
		},
		{
			name: "system module with legal fields",
			spec: VertexSpec{Category: common.CategorySystemModule, Name: "mod", Type: "Class", MicroService: "svc", BusinessModules: []string{"billing"}},
		},
		{
			name:    "system module without microService",
			spec:    VertexSpec{Category: common.CategorySystemModule, Name: "mod", Type: "Class"},
			wantErr: "microService is required for category systemModule",
		},
		{
			name:    "system module with systemModule",
			spec:    VertexSpec{Category: common.CategorySystemModule, Name: "mod", Type: "Class", MicroService: "svc", SystemModule: "other"},
			wantErr: "systemModule is not allowed for category systemModule",
		},
		{
			name: "component with legal fields",
			spec: VertexSpec{Category: common.CategoryComponent, Name: "fn", Type: "Function", MicroService: "svc", SystemModule: "mod", SourceCode: "function fn() {}"},
		},
		{
			name:    "component without systemModule",
			spec:    VertexSpec{Category: common.CategoryComponent, Name: "fn", Type: "Function", MicroService: "svc"},
			wantErr: "systemModule is required for category component",
		},
		{
			name:    "component with businessModules",
			spec:    VertexSpec{Category: common.CategoryComponent, Name: "fn", Type: "Function", MicroService: "svc", SystemModule: "mod", BusinessModules: []string{"b"}},
			wantErr: "businessModules is not allowed for category component",
		},
		{
			name:    "missing name",
			spec:    VertexSpec{Category: common.CategoryMicroService, Type: "mono"},
			wantErr: "name is required",
		},
		{
			name:    "missing type",
			spec:    VertexSpec{Category: common.CategoryMicroService, Name: "svc"},
			wantErr: "type is required",
		},
		{
			name:    "unknown category",
			spec:    VertexSpec{Category: "library", Name: "x", Type: "y"},
			wantErr: "category must be one of",
		},
	}

	v := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateSpec(&tt.spec)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}

func TestValidateSpec_NestedPath(t *testing.T) {
	spec := &VertexSpec{
		Category:     common.CategorySystemModule,
		Name:         "mod",
		Type:         "Class",
		MicroService: "svc",
		Dependencies: []*VertexSpec{
			{Category: common.CategoryComponent, Name: "a", Type: "Function", MicroService: "svc", SystemModule: "mod"},
			{Category: common.CategoryComponent, Name: "b", Type: "Function", MicroService: "svc"},
		},
	}

	err := New().ValidateSpec(spec)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if len(verr.Violations) != 1 {
		t.Fatalf("expected 1 violation, got %d: %v", len(verr.Violations), verr.Violations)
	}
	if verr.Violations[0].Field != "dependencies[1].systemModule" {
		t.Fatalf("expected field dependencies[1].systemModule, got %q", verr.Violations[0].Field)
	}
}

func TestValidate_TypedTree(t *testing.T) {
	v := New()

	ok := &common.SystemModule{
		VertexBase:   common.VertexBase{Name: "mod", Type: "Class"},
		MicroService: "svc",
	}
	if err := v.Validate(ok); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	missing := &common.Component{VertexBase: common.VertexBase{Name: "fn", Type: "Function"}}
	err := v.Validate(missing)
	if err == nil {
		t.Fatal("expected error for component without scoping fields")
	}
	if !strings.Contains(err.Error(), "microService is required") || !strings.Contains(err.Error(), "systemModule is required") {
		t.Fatalf("expected both scoping fields reported, got %q", err.Error())
	}

	if err := v.Validate(nil); err == nil {
		t.Fatal("expected error for nil vertex")
	}
}

func TestValidateQuery(t *testing.T) {
	tests := []struct {
		name    string
		query   common.VertexQuery
		wantErr bool
	}{
		{"micro service", common.VertexQuery{Category: common.CategoryMicroService, Name: "svc"}, false},
		{"extra scoping fields are ignored", common.VertexQuery{Category: common.CategoryMicroService, Name: "svc", SystemModule: "x"}, false},
		{"system module", common.VertexQuery{Category: common.CategorySystemModule, Name: "mod", MicroService: "svc"}, false},
		{"system module without microService", common.VertexQuery{Category: common.CategorySystemModule, Name: "mod"}, true},
		{"component", common.VertexQuery{Category: common.CategoryComponent, Name: "fn", MicroService: "svc", SystemModule: "mod"}, false},
		{"component without systemModule", common.VertexQuery{Category: common.CategoryComponent, Name: "fn", MicroService: "svc"}, true},
		{"missing name", common.VertexQuery{Category: common.CategoryMicroService}, true},
		{"missing category", common.VertexQuery{Name: "svc"}, true},
	}

	v := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateQuery(tt.query)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateQuery() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	spec := &VertexSpec{
		Category: common.CategoryMicroService,
		Name:     "svc",
		Type:     "mono",
		Dependencies: []*VertexSpec{
			{
				Category:        common.CategorySystemModule,
				Name:            "mod",
				Type:            "Class",
				BusinessModules: []string{"billing"},
				Dependencies: []*VertexSpec{
					{Category: common.CategoryComponent, Name: "fn", Type: "Function", SourceCode: "function fn() {}"},
				},
			},
		},
	}

	v, err := Decode(spec)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	svc, ok := v.(*common.MicroService)
	if !ok {
		t.Fatalf("expected *common.MicroService, got %T", v)
	}
	if len(svc.Dependencies) != 1 {
		t.Fatalf("expected 1 dependency, got %d", len(svc.Dependencies))
	}
	mod, ok := svc.Dependencies[0].(*common.SystemModule)
	if !ok {
		t.Fatalf("expected *common.SystemModule, got %T", svc.Dependencies[0])
	}
	if len(mod.BusinessModules) != 1 || mod.BusinessModules[0] != "billing" {
		t.Fatalf("unexpected business modules %v", mod.BusinessModules)
	}
	fn, ok := mod.Dependencies[0].(*common.Component)
	if !ok {
		t.Fatalf("expected *common.Component, got %T", mod.Dependencies[0])
	}
	if fn.SourceCode != "function fn() {}" {
		t.Fatalf("unexpected source code %q", fn.SourceCode)
	}

	back := Encode(v)
	if back.Dependencies[0].Dependencies[0].Name != "fn" {
		t.Fatalf("Encode lost the nested component: %+v", back)
	}
}

func TestDecode_ForbiddenFields(t *testing.T) {
	spec := &VertexSpec{
		Category: common.CategoryMicroService,
		Name:     "svc",
		Type:     "mono",
		Dependencies: []*VertexSpec{
			{Category: common.CategorySystemModule, Name: "mod", Type: "Class", SourceCode: "x"},
			{Category: "unknown", Name: "y", Type: "z"},
		},
	}

	_, err := Decode(spec)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	want := []string{"dependencies[0].sourceCode", "dependencies[1].category"}
	if len(verr.Violations) != len(want) {
		t.Fatalf("expected %d violations, got %v", len(want), verr.Violations)
	}
	for i, w := range want {
		if verr.Violations[i].Field != w {
			t.Errorf("violation %d: expected field %q, got %q", i, w, verr.Violations[i].Field)
		}
	}
}
