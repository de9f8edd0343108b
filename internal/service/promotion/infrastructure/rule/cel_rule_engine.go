// internal/service/promotion/infrastructure/rule/cel_rule_engine.go
package rule

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"marketplace/internal/service/promotion/domain"
)

// CELRuleEngine 是 domain.RuleEngine 的 CEL 实现。
// 规则中可用的变量：subtotal(double) item_count(int) customer_id(int) product_ids(list<int>)，
// 例如 `subtotal >= 100000.0 && 42 in product_ids`。
type CELRuleEngine struct {
	env      *cel.Env
	programs sync.Map // rule -> cel.Program
}

func NewCELRuleEngine() (*CELRuleEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("subtotal", cel.DoubleType),
		cel.Variable("item_count", cel.IntType),
		cel.Variable("customer_id", cel.IntType),
		cel.Variable("product_ids", cel.ListType(cel.IntType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cel env: %w", err)
	}
	return &CELRuleEngine{env: env}, nil
}

// Validate 只编译不执行
func (e *CELRuleEngine) Validate(rule string) error {
	_, err := e.program(rule)
	return err
}

func (e *CELRuleEngine) Evaluate(rule string, fact domain.Fact) (bool, error) {
	prg, err := e.program(rule)
	if err != nil {
		return false, err
	}

	productIDs := fact.ProductIDs
	if productIDs == nil {
		productIDs = []int64{}
	}
	out, _, err := prg.Eval(map[string]interface{}{
		"subtotal":    fact.Subtotal.InexactFloat64(),
		"item_count":  int64(fact.ItemCount),
		"customer_id": fact.CustomerID,
		"product_ids": productIDs,
	})
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrInvalidRule, err)
	}
	ok, isBool := out.Value().(bool)
	if !isBool {
		return false, fmt.Errorf("%w: rule returned %T", domain.ErrInvalidRule, out.Value())
	}
	return ok, nil
}

func (e *CELRuleEngine) program(rule string) (cel.Program, error) {
	if p, ok := e.programs.Load(rule); ok {
		return p.(cel.Program), nil
	}

	ast, iss := e.env.Compile(rule)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRule, iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("%w: rule must evaluate to bool, got %s", domain.ErrInvalidRule, ast.OutputType())
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRule, err)
	}
	e.programs.Store(rule, prg)
	return prg, nil
}
