package lbpair

// PairABI is the subset of the liquidity-book pair interface read by the client.
const PairABI = `[
  {"type":"function","name":"getActiveId","stateMutability":"view","inputs":[],"outputs":[{"name":"activeId","type":"uint24"}]},
  {"type":"function","name":"getBinStep","stateMutability":"pure","inputs":[],"outputs":[{"name":"","type":"uint16"}]},
  {"type":"function","name":"getTokenX","stateMutability":"pure","inputs":[],"outputs":[{"name":"tokenX","type":"address"}]},
  {"type":"function","name":"getTokenY","stateMutability":"pure","inputs":[],"outputs":[{"name":"tokenY","type":"address"}]},
  {"type":"function","name":"getReserves","stateMutability":"view","inputs":[],"outputs":[{"name":"reserveX","type":"uint128"},{"name":"reserveY","type":"uint128"}]},
  {"type":"function","name":"getBin","stateMutability":"view","inputs":[{"name":"id","type":"uint24"}],"outputs":[{"name":"binReserveX","type":"uint128"},{"name":"binReserveY","type":"uint128"}]},
  {"type":"function","name":"totalSupply","stateMutability":"view","inputs":[{"name":"id","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"},{"name":"id","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"isApprovedForAll","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"getSwapOut","stateMutability":"view","inputs":[{"name":"amountIn","type":"uint128"},{"name":"swapForY","type":"bool"}],"outputs":[{"name":"amountInLeft","type":"uint128"},{"name":"amountOut","type":"uint128"},{"name":"fee","type":"uint128"}]}
]`

// ERC20ABI covers the token reads used for balance and allowance pre-checks.
const ERC20ABI = `[
  {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`
