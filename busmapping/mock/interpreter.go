// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package mock

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"

	"github.com/Merlot21/zkevm-circuits/busmapping/evm"
	"github.com/Merlot21/zkevm-circuits/eth/tracers/logger"
)

var (
	errReverted = errors.New("execution reverted")
	// identity is the only precompile the interpreter runs.
	identity = common.BytesToAddress([]byte{4})
)

type account struct {
	nonce   uint64
	balance uint256.Int
	code    []byte
	storage map[uint256.Int]uint256.Int
}

type world struct {
	accounts map[common.Address]*account
}

func newWorld() *world {
	return &world{accounts: make(map[common.Address]*account)}
}

func (w *world) account(addr common.Address) *account {
	acc, ok := w.accounts[addr]
	if !ok {
		acc = &account{storage: make(map[uint256.Int]uint256.Int)}
		w.accounts[addr] = acc
	}
	return acc
}

func (w *world) balance(addr common.Address) uint256.Int {
	if acc, ok := w.accounts[addr]; ok {
		return acc.balance
	}
	return uint256.Int{}
}

func (w *world) code(addr common.Address) []byte {
	if acc, ok := w.accounts[addr]; ok {
		return acc.code
	}
	return nil
}

func (w *world) state(addr common.Address, slot uint256.Int) uint256.Int {
	if acc, ok := w.accounts[addr]; ok {
		return acc.storage[slot]
	}
	return uint256.Int{}
}

func (w *world) isEmpty(addr common.Address) bool {
	acc, ok := w.accounts[addr]
	return !ok || (acc.nonce == 0 && acc.balance.IsZero() && len(acc.code) == 0)
}

func (w *world) copy() *world {
	cp := &world{accounts: make(map[common.Address]*account, len(w.accounts))}
	for addr, acc := range w.accounts {
		c := *acc
		c.storage = maps.Clone(acc.storage)
		cp.accounts[addr] = &c
	}
	return cp
}

type frame struct {
	caller  common.Address
	address common.Address
	code    []byte
	input   []byte
	value   uint256.Int
	gas     uint64
	depth   int
	static  bool
	create  bool
	// noTransfer marks frames running on behalf of their caller.
	noTransfer bool

	stack      []uint256.Int
	memory     []byte
	returnData []byte
}

func (f *frame) pop() uint256.Int {
	v := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return v
}

func (f *frame) push(v uint256.Int) { f.stack = append(f.stack, v) }

func (f *frame) peek(n int) uint256.Int { return f.stack[len(f.stack)-1-n] }

// expand grows memory for an access of size bytes at off.
func (f *frame) expand(off, size uint256.Int) (uint64, uint64, error) {
	if size.IsZero() {
		return 0, 0, nil
	}
	if !off.IsUint64() || !size.IsUint64() || off.Uint64() > 1<<32 || size.Uint64() > 1<<32-off.Uint64() {
		return 0, 0, vm.ErrOutOfGas
	}
	o, s := off.Uint64(), size.Uint64()
	if n := evm.WordsFor(o+s) * evm.WordSize; n > uint64(len(f.memory)) {
		f.memory = append(f.memory, make([]byte, n-uint64(len(f.memory)))...)
	}
	return o, s, nil
}

func slice(data []byte, off uint256.Int, size uint64) []byte {
	out := make([]byte, size)
	if off.IsUint64() && off.Uint64() < uint64(len(data)) {
		copy(out, data[off.Uint64():])
	}
	return out
}

// gasCost is a flat cost per instruction. The builder only checks that gas
// is consumed consistently, not the schedule.
func gasCost(op vm.OpCode) uint64 {
	switch {
	case op == vm.STOP || op == vm.RETURN || op == vm.REVERT:
		return 0
	case op == vm.JUMPDEST:
		return params.JumpdestGas
	case op == vm.SLOAD || op == vm.SSTORE || op == vm.BALANCE || op == vm.EXTCODESIZE ||
		op == vm.EXTCODEHASH || op == vm.EXTCODECOPY:
		return params.WarmStorageReadCostEIP2929
	case op == vm.KECCAK256:
		return params.Keccak256Gas
	case evm.IsLog(op):
		return params.LogGas
	case op == vm.CREATE || op == vm.CREATE2:
		return params.CreateGas
	case evm.Info(op).Call:
		return params.WarmStorageReadCostEIP2929
	case op == vm.SELFDESTRUCT:
		return params.SelfdestructGasEIP150
	}
	return vm.GasFastestStep
}

type tracer struct {
	ctx     *TestContext
	w       *world
	origin  *world
	tx      *Tx
	refund  uint64
	logs    []logger.StructLog
	storage map[common.Address]logger.Storage
	// fatal is set when the program cannot be interpreted at all.
	fatal error
}

// enter runs f in a fresh snapshot: init and the value transfer happen inside
// it, and everything is undone when the frame fails.
func (t *tracer) enter(f *frame, init func()) ([]byte, error) {
	snap, refund := t.w.copy(), t.refund
	if init != nil {
		init()
	}
	if !f.noTransfer && !f.value.IsZero() {
		from, to := t.w.account(f.caller), t.w.account(f.address)
		from.balance.Sub(&from.balance, &f.value)
		to.balance.Add(&to.balance, &f.value)
	}
	var (
		ret []byte
		err error
	)
	if len(f.code) > 0 {
		ret, err = t.run(f)
	}
	if err == nil && f.create {
		switch {
		case len(ret) > params.MaxCodeSize:
			err = vm.ErrMaxCodeSizeExceeded
		case len(ret) > 0 && ret[0] == 0xef:
			err = vm.ErrInvalidCode
		default:
			t.w.account(f.address).code = ret
		}
		if err != nil {
			f.gas = 0
		}
	}
	if err != nil {
		t.w.accounts, t.refund = snap.accounts, refund
	}
	return ret, err
}

func (t *tracer) run(f *frame) ([]byte, error) {
	dests := evm.AnalyzeJumpDests(f.code)
	pc := uint64(0)
	for {
		op := vm.STOP
		if pc < uint64(len(f.code)) {
			op = vm.OpCode(f.code[pc])
		}
		cost := gasCost(op)
		idx := len(t.logs)
		t.logs = append(t.logs, logger.StructLog{
			Pc:            pc,
			Op:            op,
			Gas:           f.gas,
			GasCost:       cost,
			Depth:         f.depth,
			RefundCounter: t.refund,
			Stack:         slices.Clone(f.stack),
			Memory:        slices.Clone(f.memory),
			MemorySize:    len(f.memory),
			ReturnData:    slices.Clone(f.returnData),
		})
		fail := func(err error) ([]byte, error) {
			t.logs[idx].Error = err.Error()
			f.gas = 0
			return nil, err
		}

		info := evm.Info(op)
		switch {
		case !info.Valid:
			return fail(&vm.ErrInvalidOpCode{})
		case len(f.stack) < info.MinStack:
			return fail(&vm.ErrStackUnderflow{})
		case len(f.stack) > info.MaxStack:
			return fail(&vm.ErrStackOverflow{})
		case f.gas < cost:
			return fail(vm.ErrOutOfGas)
		case f.static && (info.Writes || (op == vm.CALL && !f.stack[len(f.stack)-3].IsZero())):
			return fail(vm.ErrWriteProtection)
		}
		f.gas -= cost
		next := evm.NextPC(op, pc)

		switch {
		case op == vm.PUSH0:
			f.push(uint256.Int{})
		case evm.IsPush(op):
			var v uint256.Int
			v.SetBytes(slice(f.code, *uint256.NewInt(pc + 1), uint64(evm.PushSize(op))))
			f.push(v)
		case evm.IsDup(op):
			f.push(f.peek(int(op - vm.DUP1)))
		case evm.IsSwap(op):
			n := int(op-vm.SWAP1) + 1
			top := len(f.stack) - 1
			f.stack[top], f.stack[top-n] = f.stack[top-n], f.stack[top]
		case evm.IsLog(op):
			off, size := f.pop(), f.pop()
			for i := 0; i < int(op-vm.LOG0); i++ {
				f.pop()
			}
			if _, _, err := f.expand(off, size); err != nil {
				return fail(err)
			}
		default:
			ret, done, err := t.exec(f, op, idx, dests, &next)
			if err != nil {
				if t.fatal != nil {
					return nil, t.fatal
				}
				if errors.Is(err, errReverted) {
					return ret, err
				}
				return fail(err)
			}
			if done {
				return ret, nil
			}
		}
		pc = next
	}
}

// exec runs the instructions with individual semantics. done reports that
// the frame halted successfully with ret.
func (t *tracer) exec(f *frame, op vm.OpCode, idx int, dests evm.JumpDests, next *uint64) (ret []byte, done bool, err error) {
	switch op {
	case vm.STOP:
		return nil, true, nil
	case vm.ADD, vm.MUL, vm.SUB, vm.DIV, vm.MOD, vm.LT, vm.GT, vm.EQ, vm.AND, vm.OR, vm.XOR, vm.SHL, vm.SHR, vm.BYTE:
		a, b := f.pop(), f.pop()
		f.push(binary(op, &a, &b))
	case vm.ISZERO:
		a := f.pop()
		f.push(boolWord(a.IsZero()))
	case vm.NOT:
		a := f.pop()
		a.Not(&a)
		f.push(a)
	case vm.KECCAK256:
		o, s, err := f.expand(f.pop(), f.pop())
		if err != nil {
			return nil, false, err
		}
		var v uint256.Int
		v.SetBytes32(crypto.Keccak256(f.memory[o : o+s]))
		f.push(v)
	case vm.ADDRESS:
		f.push(addressWord(f.address))
	case vm.CALLER:
		f.push(addressWord(f.caller))
	case vm.ORIGIN:
		f.push(addressWord(t.tx.From))
	case vm.CALLVALUE:
		f.push(f.value)
	case vm.CALLDATASIZE:
		f.push(*uint256.NewInt(uint64(len(f.input))))
	case vm.RETURNDATASIZE:
		f.push(*uint256.NewInt(uint64(len(f.returnData))))
	case vm.CODESIZE:
		f.push(*uint256.NewInt(uint64(len(f.code))))
	case vm.GASPRICE:
		f.push(t.tx.GasPrice)
	case vm.COINBASE:
		f.push(addressWord(Coinbase))
	case vm.NUMBER:
		f.push(*uint256.NewInt(t.ctx.Number))
	case vm.TIMESTAMP:
		f.push(*uint256.NewInt(1_700_000_000))
	case vm.CHAINID:
		f.push(*uint256.NewInt(t.ctx.ChainID))
	case vm.BASEFEE:
		f.push(t.ctx.BaseFee)
	case vm.GASLIMIT:
		f.push(*uint256.NewInt(DefaultGasLimit))
	case vm.GAS:
		f.push(*uint256.NewInt(f.gas))
	case vm.PC:
		f.push(*uint256.NewInt(t.logs[idx].Pc))
	case vm.MSIZE:
		f.push(*uint256.NewInt(uint64(len(f.memory))))
	case vm.SELFBALANCE:
		f.push(t.w.balance(f.address))
	case vm.BALANCE:
		a := f.pop()
		f.push(t.w.balance(common.Address(a.Bytes20())))
	case vm.EXTCODESIZE:
		a := f.pop()
		f.push(*uint256.NewInt(uint64(len(t.w.code(common.Address(a.Bytes20()))))))
	case vm.EXTCODEHASH:
		a := f.pop()
		addr := common.Address(a.Bytes20())
		var h uint256.Int
		if !t.w.isEmpty(addr) {
			h.SetBytes32(crypto.Keccak256(t.w.code(addr)))
		}
		f.push(h)
	case vm.CALLDATALOAD:
		off := f.pop()
		var v uint256.Int
		v.SetBytes32(slice(f.input, off, evm.WordSize))
		f.push(v)
	case vm.CALLDATACOPY, vm.CODECOPY, vm.RETURNDATACOPY:
		mem, off, size := f.pop(), f.pop(), f.pop()
		src := f.input
		switch op {
		case vm.CODECOPY:
			src = f.code
		case vm.RETURNDATACOPY:
			src = f.returnData
			var end uint256.Int
			if _, overflow := end.AddOverflow(&off, &size); overflow || !end.IsUint64() || end.Uint64() > uint64(len(src)) {
				return nil, false, vm.ErrReturnDataOutOfBounds
			}
		}
		o, s, err := f.expand(mem, size)
		if err != nil {
			return nil, false, err
		}
		copy(f.memory[o:o+s], slice(src, off, s))
	case vm.EXTCODECOPY:
		a, mem, off, size := f.pop(), f.pop(), f.pop(), f.pop()
		o, s, err := f.expand(mem, size)
		if err != nil {
			return nil, false, err
		}
		copy(f.memory[o:o+s], slice(t.w.code(common.Address(a.Bytes20())), off, s))
	case vm.MCOPY:
		dst, src, size := f.pop(), f.pop(), f.pop()
		so, s, err := f.expand(src, size)
		if err != nil {
			return nil, false, err
		}
		do, _, err := f.expand(dst, size)
		if err != nil {
			return nil, false, err
		}
		copy(f.memory[do:do+s], slices.Clone(f.memory[so:so+s]))
	case vm.POP:
		f.pop()
	case vm.MLOAD:
		o, _, err := f.expand(f.pop(), *uint256.NewInt(evm.WordSize))
		if err != nil {
			return nil, false, err
		}
		var v uint256.Int
		v.SetBytes32(f.memory[o : o+evm.WordSize])
		f.push(v)
	case vm.MSTORE:
		off, v := f.pop(), f.pop()
		o, _, err := f.expand(off, *uint256.NewInt(evm.WordSize))
		if err != nil {
			return nil, false, err
		}
		b := v.Bytes32()
		copy(f.memory[o:], b[:])
	case vm.MSTORE8:
		off, v := f.pop(), f.pop()
		o, _, err := f.expand(off, *uint256.NewInt(1))
		if err != nil {
			return nil, false, err
		}
		f.memory[o] = byte(v.Uint64())
	case vm.SLOAD:
		key := f.pop()
		v := t.w.state(f.address, key)
		t.touchSlot(f.address, key, v, idx)
		f.push(v)
	case vm.SSTORE:
		key, v := f.pop(), f.pop()
		original, current := t.origin.state(f.address, key), t.w.state(f.address, key)
		t.refund = uint64(int64(t.refund) + evm.SstoreRefundDelta(&original, &current, &v))
		t.w.account(f.address).storage[key] = v
		t.touchSlot(f.address, key, v, idx)
	case vm.JUMP:
		dest := f.pop()
		if !dest.IsUint64() || !dests.Has(dest.Uint64()) {
			return nil, false, vm.ErrInvalidJump
		}
		*next = dest.Uint64()
	case vm.JUMPI:
		dest, cond := f.pop(), f.pop()
		if !cond.IsZero() {
			if !dest.IsUint64() || !dests.Has(dest.Uint64()) {
				return nil, false, vm.ErrInvalidJump
			}
			*next = dest.Uint64()
		}
	case vm.JUMPDEST:
	case vm.CALL, vm.CALLCODE, vm.DELEGATECALL, vm.STATICCALL:
		return nil, false, t.call(f, op, idx)
	case vm.CREATE, vm.CREATE2:
		return nil, false, t.create(f, op, idx)
	case vm.RETURN, vm.REVERT:
		o, s, err := f.expand(f.pop(), f.pop())
		if err != nil {
			return nil, false, err
		}
		ret = slices.Clone(f.memory[o : o+s])
		if op == vm.REVERT {
			return ret, false, errReverted
		}
		return ret, true, nil
	case vm.SELFDESTRUCT:
		a := f.pop()
		beneficiary := common.Address(a.Bytes20())
		if beneficiary != f.address {
			self, to := t.w.account(f.address), t.w.account(beneficiary)
			to.balance.Add(&to.balance, &self.balance)
			self.balance.Clear()
		}
		return nil, true, nil
	default:
		t.fatal = fmt.Errorf("%w: %s", ErrUnsupportedOpcode, op)
		return nil, false, t.fatal
	}
	return nil, false, nil
}

func (t *tracer) touchSlot(addr common.Address, key, value uint256.Int, idx int) {
	st, ok := t.storage[addr]
	if !ok {
		st = make(logger.Storage)
		t.storage[addr] = st
	}
	st[key.Bytes32()] = value.Bytes32()
	t.logs[idx].Storage = st.Copy()
}

// callGas is the gas handed to a sub frame: all but one 64th of what is left,
// capped by the requested amount.
func callGas(f *frame, requested *uint256.Int) uint64 {
	g := f.gas - f.gas/64
	if requested != nil && requested.IsUint64() && requested.Uint64() < g {
		g = requested.Uint64()
	}
	return g
}

func (t *tracer) call(f *frame, op vm.OpCode, idx int) error {
	requested, a := f.pop(), f.pop()
	var value uint256.Int
	if op == vm.CALL || op == vm.CALLCODE {
		value = f.pop()
	}
	argsOff, argsLen, retOff, retLen := f.pop(), f.pop(), f.pop(), f.pop()
	ao, as, err := f.expand(argsOff, argsLen)
	if err != nil {
		return err
	}
	ro, rs, err := f.expand(retOff, retLen)
	if err != nil {
		return err
	}
	addr := common.Address(a.Bytes20())
	gas := callGas(f, &requested)
	t.logs[idx].GasCost += gas
	f.gas -= gas

	child := &frame{
		caller:  f.address,
		address: addr,
		code:    t.w.code(addr),
		input:   slices.Clone(f.memory[ao : ao+as]),
		value:   value,
		gas:     gas,
		depth:   f.depth + 1,
		static:  f.static || op == vm.STATICCALL,
	}
	switch op {
	case vm.CALLCODE:
		child.address, child.noTransfer = f.address, true
	case vm.DELEGATECALL:
		child.caller, child.address, child.value, child.noTransfer = f.caller, f.address, f.value, true
	}

	var (
		ret []byte
		ok  bool
	)
	balance := t.w.balance(f.address)
	switch {
	case f.depth > int(params.CallCreateDepth) || balance.Lt(&value):
	case addr == identity:
		if !child.noTransfer && !value.IsZero() {
			from, to := t.w.account(f.address), t.w.account(addr)
			from.balance.Sub(&from.balance, &value)
			to.balance.Add(&to.balance, &value)
		}
		ret, ok = slices.Clone(child.input), true
	case isPrecompile(addr):
		t.fatal = fmt.Errorf("%w: precompile %s", ErrUnsupportedOpcode, addr)
		return t.fatal
	default:
		var err error
		ret, err = t.enter(child, nil)
		if t.fatal != nil {
			return t.fatal
		}
		ok = err == nil
		if err != nil && !errors.Is(err, errReverted) {
			ret = nil
		}
	}
	f.gas += child.gas
	f.returnData = ret
	if ok || len(ret) > 0 {
		copy(f.memory[ro:ro+rs], ret)
	}
	f.push(boolWord(ok))
	return nil
}

func (t *tracer) create(f *frame, op vm.OpCode, idx int) error {
	value, off, size := f.pop(), f.pop(), f.pop()
	var salt uint256.Int
	if op == vm.CREATE2 {
		salt = f.pop()
	}
	o, s, err := f.expand(off, size)
	if err != nil {
		return err
	}
	initCode := slices.Clone(f.memory[o : o+s])
	gas := callGas(f, nil)
	t.logs[idx].GasCost += gas
	f.gas -= gas
	f.returnData = nil

	balance := t.w.balance(f.address)
	if f.depth > int(params.CallCreateDepth) || balance.Lt(&value) {
		f.gas += gas
		f.push(uint256.Int{})
		return nil
	}
	creator := t.w.account(f.address)
	nonce := creator.nonce
	creator.nonce++
	var addr common.Address
	if op == vm.CREATE2 {
		addr = crypto.CreateAddress2(f.address, salt.Bytes32(), crypto.Keccak256(initCode))
	} else {
		addr = crypto.CreateAddress(f.address, nonce)
	}
	if acc, ok := t.w.accounts[addr]; ok && (acc.nonce != 0 || len(acc.code) > 0) {
		f.push(uint256.Int{})
		return nil
	}
	child := &frame{
		caller:  f.address,
		address: addr,
		code:    initCode,
		value:   value,
		gas:     gas,
		depth:   f.depth + 1,
		static:  f.static,
		create:  true,
	}
	ret, err := t.enter(child, func() { t.w.account(addr).nonce = 1 })
	if t.fatal != nil {
		return t.fatal
	}
	f.gas += child.gas
	switch {
	case err == nil:
		f.push(addressWord(addr))
	case errors.Is(err, errReverted):
		f.returnData = ret
		f.push(uint256.Int{})
	default:
		f.push(uint256.Int{})
	}
	return nil
}

func isPrecompile(addr common.Address) bool {
	for i := 1; i <= 10; i++ {
		if addr == common.BytesToAddress([]byte{byte(i)}) {
			return true
		}
	}
	return false
}

func binary(op vm.OpCode, a, b *uint256.Int) uint256.Int {
	var z uint256.Int
	switch op {
	case vm.ADD:
		z.Add(a, b)
	case vm.MUL:
		z.Mul(a, b)
	case vm.SUB:
		z.Sub(a, b)
	case vm.DIV:
		z.Div(a, b)
	case vm.MOD:
		z.Mod(a, b)
	case vm.LT:
		z = boolWord(a.Lt(b))
	case vm.GT:
		z = boolWord(a.Gt(b))
	case vm.EQ:
		z = boolWord(a.Eq(b))
	case vm.AND:
		z.And(a, b)
	case vm.OR:
		z.Or(a, b)
	case vm.XOR:
		z.Xor(a, b)
	case vm.SHL:
		if a.LtUint64(256) {
			z.Lsh(b, uint(a.Uint64()))
		}
	case vm.SHR:
		if a.LtUint64(256) {
			z.Rsh(b, uint(a.Uint64()))
		}
	case vm.BYTE:
		z = *b
		z.Byte(a)
	}
	return z
}

func boolWord(b bool) uint256.Int {
	if b {
		return *uint256.NewInt(1)
	}
	return uint256.Int{}
}

func addressWord(addr common.Address) uint256.Int {
	var w uint256.Int
	w.SetBytes20(addr[:])
	return w
}
