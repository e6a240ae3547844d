package contract

// StomaTradeABI is the interface of the StomaTrade contract version this
// module binds to. Deployed ABIs are validated against it at startup.
const StomaTradeABI = `[
  {"type":"function","name":"addFarmer","stateMutability":"nonpayable",
   "inputs":[{"name":"_cid","type":"string"},{"name":"_idCollector","type":"string"},{"name":"_name","type":"string"},{"name":"_age","type":"uint256"},{"name":"_domicile","type":"string"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"createProject","stateMutability":"nonpayable",
   "inputs":[{"name":"_valueProject","type":"uint256"},{"name":"_maxCrowdFunding","type":"uint256"},{"name":"_cid","type":"string"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"invest","stateMutability":"nonpayable",
   "inputs":[{"name":"_idProject","type":"uint256"},{"name":"_amount","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"finishProject","stateMutability":"nonpayable",
   "inputs":[{"name":"_idProject","type":"uint256"},{"name":"_profit","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"claimWithdraw","stateMutability":"nonpayable",
   "inputs":[{"name":"_idProject","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"refundProject","stateMutability":"nonpayable",
   "inputs":[{"name":"_idProject","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"claimRefund","stateMutability":"nonpayable",
   "inputs":[{"name":"_idProject","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"closeProject","stateMutability":"nonpayable",
   "inputs":[{"name":"_idProject","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"getContribution","stateMutability":"view",
   "inputs":[{"name":"_idProject","type":"uint256"},{"name":"_investor","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getProfitPool","stateMutability":"view",
   "inputs":[{"name":"_idProject","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getClaimedProfit","stateMutability":"view",
   "inputs":[{"name":"_idProject","type":"uint256"},{"name":"_investor","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"tokenURI","stateMutability":"view",
   "inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"string"}]},
  {"type":"event","name":"FarmerAdded","anonymous":false,
   "inputs":[{"name":"idToken","type":"uint256","indexed":true},{"name":"idCollector","type":"string","indexed":false},{"name":"name","type":"string","indexed":false},{"name":"age","type":"uint256","indexed":false}]},
  {"type":"event","name":"ProjectCreated","anonymous":false,
   "inputs":[{"name":"idProject","type":"uint256","indexed":true},{"name":"owner","type":"address","indexed":true},{"name":"valueProject","type":"uint256","indexed":false},{"name":"maxCrowdFunding","type":"uint256","indexed":false}]},
  {"type":"event","name":"Invested","anonymous":false,
   "inputs":[{"name":"idProject","type":"uint256","indexed":true},{"name":"investor","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false},{"name":"receiptTokenId","type":"uint256","indexed":false}]},
  {"type":"event","name":"ProjectStatusChanged","anonymous":false,
   "inputs":[{"name":"idProject","type":"uint256","indexed":true},{"name":"oldStatus","type":"uint8","indexed":false},{"name":"newStatus","type":"uint8","indexed":false}]},
  {"type":"event","name":"ProfitClaimed","anonymous":false,
   "inputs":[{"name":"idProject","type":"uint256","indexed":true},{"name":"user","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false}]},
  {"type":"event","name":"Refunded","anonymous":false,
   "inputs":[{"name":"idProject","type":"uint256","indexed":true},{"name":"investor","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false}]},
  {"type":"event","name":"Transfer","anonymous":false,
   "inputs":[{"name":"from","type":"address","indexed":true},{"name":"to","type":"address","indexed":true},{"name":"tokenId","type":"uint256","indexed":true}]}
]`
